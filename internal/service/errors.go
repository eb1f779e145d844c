package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/document"
	"github.com/mmynk/splitledger/internal/entity"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

var (
	errNotMember      = errors.New("caller is not a member")
	errNotParticipant = errors.New("caller takes no part in the transaction")
	errMissingArgs    = errors.New("missing required field")
	errBadParticipant = errors.New("invalid participant")
)

// toConnectError maps domain errors onto connect codes.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, models.ErrUnbalanced),
		errors.Is(err, calculator.ErrNoParticipants),
		errors.Is(err, calculator.ErrZeroSubtotal),
		errors.Is(err, calculator.ErrZeroWeight),
		errors.Is(err, errMissingArgs),
		errors.Is(err, errBadParticipant):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, entity.ErrNoInvitation):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, entity.ErrPartialCascade):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, errNotMember), errors.Is(err, errNotParticipant):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, document.ErrBroken):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
