package entity

import "errors"

// ErrPartialCascade wraps a store failure that stopped a multi-document
// operation after some documents were already written.
var ErrPartialCascade = errors.New("cascade stopped part way")

// ErrNoInvitation is returned when accepting an invitation or friend request
// that was never sent.
var ErrNoInvitation = errors.New("no pending invitation")
