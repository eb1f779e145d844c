package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group is a set of users that share transactions.
type Group struct {
	// ID is assigned by the document store on first flush.
	ID string `json:"-"`

	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`

	// FamilyMode splits shared costs using FamilyMultipliers instead of
	// equal shares.
	FamilyMode bool `json:"familyMode"`

	Users        []string `json:"users"`
	InvitedUsers []string `json:"invitedUsers"`

	// Transactions is newest first.
	Transactions []string `json:"transactions"`

	// Balances is user ID -> currency bucket -> net amount inside this group.
	Balances map[string]map[string]decimal.Decimal `json:"balances"`

	InviteCode string `json:"inviteCode"`

	// FamilyMultipliers weights a member's share when FamilyMode is on.
	// Members without an entry count as 1.
	FamilyMultipliers map[string]decimal.Decimal `json:"familyMultipliers"`
}

// EmptyGroup returns the default group document for id.
func EmptyGroup(id string) Group {
	return Group{
		ID:                id,
		Users:             []string{},
		InvitedUsers:      []string{},
		Transactions:      []string{},
		Balances:          map[string]map[string]decimal.Decimal{},
		FamilyMultipliers: map[string]decimal.Decimal{},
	}
}

// Balance returns a member's balance in bucket.
func (g Group) Balance(userID, bucket string) decimal.Decimal {
	return g.Balances[userID][bucket]
}

// Multiplier returns the family-mode weight of a member.
func (g Group) Multiplier(userID string) decimal.Decimal {
	if m, ok := g.FamilyMultipliers[userID]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}
