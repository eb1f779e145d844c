package models

import (
	"fmt"
	"net/url"
	"time"
)

// avatarBase renders a deterministic identicon for users without an avatar.
const avatarBase = "https://api.dicebear.com/9.x/identicon/svg"

// PersonalData is the profile section of a user document.
type PersonalData struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`

	// AvatarURL defaults to DefaultAvatarURL(id) when the user never set one.
	AvatarURL string `json:"avatarUrl"`
}

// User is the per-person document.
//
// Set-like fields (Friends, Groups, Transactions, ...) are kept as ordered
// slices without duplicates; new values are appended.
type User struct {
	// ID is assigned by the document store on first flush. It is not part of
	// the stored body.
	ID string `json:"-"`

	Friends      []string `json:"friends"`
	Groups       []string `json:"groups"`
	Transactions []string `json:"transactions"`

	// Relations holds one ledger per counterparty user ID.
	Relations map[string]RelationLedger `json:"relations"`

	CreatedAt time.Time    `json:"createdAt"`
	Personal  PersonalData `json:"personalData"`

	Notifications []Notification `json:"notifications"`

	MutedGroups            []string `json:"mutedGroups"`
	MutedUsers             []string `json:"mutedUsers"`
	GroupInvitations       []string `json:"groupInvitations"`
	IncomingFriendRequests []string `json:"incomingFriendRequests"`
	OutgoingFriendRequests []string `json:"outgoingFriendRequests"`
}

// EmptyUser returns the default user document for id.
func EmptyUser(id string) User {
	return User{
		ID:                     id,
		Friends:                []string{},
		Groups:                 []string{},
		Transactions:           []string{},
		Relations:              map[string]RelationLedger{},
		Personal:               PersonalData{AvatarURL: DefaultAvatarURL(id)},
		Notifications:          []Notification{},
		MutedGroups:            []string{},
		MutedUsers:             []string{},
		GroupInvitations:       []string{},
		IncomingFriendRequests: []string{},
		OutgoingFriendRequests: []string{},
	}
}

// DefaultAvatarURL returns the placeholder avatar for a user ID.
// The same ID always yields the same URL.
func DefaultAvatarURL(id string) string {
	return fmt.Sprintf("%s?seed=%s", avatarBase, url.QueryEscape(id))
}

// DisplayName returns the user's name, falling back to the email.
func (u User) DisplayName() string {
	if u.Personal.DisplayName != "" {
		return u.Personal.DisplayName
	}
	return u.Personal.Email
}

// Relation returns the ledger against counterparty, or a fresh one.
func (u User) Relation(counterparty string) RelationLedger {
	if l, ok := u.Relations[counterparty]; ok {
		return l
	}
	return NewRelationLedger("")
}
