package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnbalanced is returned when a transaction's balances do not sum to zero.
var ErrUnbalanced = errors.New("transaction balances do not sum to zero")

// ZeroSumTolerance absorbs the rounding left by proportional shares.
var ZeroSumTolerance = decimal.New(1, -9)

// Transaction is a single multi-party expense, payment or IOU.
type Transaction struct {
	// ID is assigned by the document store on first flush.
	ID string `json:"-"`

	Title     string    `json:"title"`
	CreatedBy string    `json:"createdBy"`
	Date      time.Time `json:"date"`
	Currency  Currency  `json:"currency"`

	// Amount is signed from the creator's point of view.
	Amount decimal.Decimal `json:"amount"`

	// Balances maps participant user ID to its net effect: positive for
	// creditors, negative for debtors. The values always sum to zero.
	Balances map[string]decimal.Decimal `json:"balances"`

	// Group is empty for transactions outside any group.
	Group string `json:"group,omitempty"`

	// SettleGroups maps group ID to the amount settled inside that group.
	// Only settlement transactions spanning several groups use it.
	SettleGroups map[string]decimal.Decimal `json:"settleGroups"`

	IsIOU bool `json:"isIOU"`
}

// EmptyTransaction returns the default transaction document for id.
func EmptyTransaction(id string) Transaction {
	return Transaction{
		ID:           id,
		Currency:     USD,
		Balances:     map[string]decimal.Decimal{},
		SettleGroups: map[string]decimal.Decimal{},
	}
}

// Validate checks the zero-sum invariant.
func (t Transaction) Validate() error {
	if len(t.Balances) == 0 {
		return fmt.Errorf("%w: no participants", ErrUnbalanced)
	}
	sum := decimal.Zero
	for _, v := range t.Balances {
		sum = sum.Add(v)
	}
	if sum.Abs().GreaterThan(ZeroSumTolerance) {
		return fmt.Errorf("%w: sum is %s", ErrUnbalanced, sum)
	}
	return nil
}

// TotalCredit returns the sum of all positive balances.
func (t Transaction) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, v := range t.Balances {
		if v.IsPositive() {
			total = total.Add(v)
		}
	}
	return total
}

// Participants returns the user IDs in Balances, sorted.
func (t Transaction) Participants() []string {
	ids := make([]string, 0, len(t.Balances))
	for id := range t.Balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AffectedGroups returns every group whose balances this transaction touches,
// sorted. That is Group plus the keys of SettleGroups.
func (t Transaction) AffectedGroups() []string {
	seen := make(map[string]bool, len(t.SettleGroups)+1)
	var ids []string
	if t.Group != "" {
		seen[t.Group] = true
		ids = append(ids, t.Group)
	}
	for id := range t.SettleGroups {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GroupShares returns how much of each participant's balance lands in
// groupID. Settle groups receive the settled fraction of the transaction;
// the home group without a settle entry receives the full balances.
func (t Transaction) GroupShares(groupID string) map[string]decimal.Decimal {
	shares := make(map[string]decimal.Decimal, len(t.Balances))
	settled, ok := t.SettleGroups[groupID]
	switch {
	case ok:
		credit := t.TotalCredit()
		if credit.IsZero() {
			return shares
		}
		for user, v := range t.Balances {
			shares[user] = v.Mul(settled).Div(credit)
		}
	case groupID != "" && groupID == t.Group:
		for user, v := range t.Balances {
			shares[user] = v
		}
	}
	return shares
}
