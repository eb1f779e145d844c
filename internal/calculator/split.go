// Package calculator turns expenses into transaction balance maps and
// transaction balance maps into pairwise ledger entries.
package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNoParticipants = errors.New("must have at least one participant")
	ErrZeroSubtotal   = errors.New("subtotal cannot be zero")
	ErrZeroWeight     = errors.New("participant weights sum to zero")
)

// cents is the precision shares are rounded to.
const cents = 2

// Item is a single line on an itemized bill.
type Item struct {
	Description string
	Amount      decimal.Decimal
	AssignedTo  []string
}

// SplitWeighted builds a zero-sum balance map for an expense of total paid
// by payer and shared by participants. Each participant's share is
// total * weight / sum(weights), rounded to cents; a participant without a
// weight counts as 1 (family mode passes the group's multipliers, everyone
// else passes nil).
//
// Every participant other than the payer ends up at -share. The payer ends up
// at the sum of those shares, which absorbs the rounding residue and keeps the
// map exactly zero-sum.
func SplitWeighted(payer string, total decimal.Decimal, participants []string, weights map[string]decimal.Decimal) (map[string]decimal.Decimal, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	one := decimal.NewFromInt(1)
	weightOf := func(p string) decimal.Decimal {
		if w, ok := weights[p]; ok {
			return w
		}
		return one
	}

	totalWeight := decimal.Zero
	for _, p := range participants {
		totalWeight = totalWeight.Add(weightOf(p))
	}
	if totalWeight.IsZero() {
		return nil, ErrZeroWeight
	}

	shares := make(map[string]decimal.Decimal, len(participants))
	for _, p := range participants {
		shares[p] = shares[p].Add(total.Mul(weightOf(p)).Div(totalWeight).Round(cents))
	}
	return settle(payer, shares), nil
}

// SplitItemized splits an itemized bill with proportional tax:
//
//	share = subtotal_p * (1 + (billTotal - billSubtotal) / billSubtotal)
//
// Items without assignees are skipped. Without items the bill is split
// equally. The result is a zero-sum balance map as in SplitWeighted.
func SplitItemized(payer string, items []Item, billTotal, billSubtotal decimal.Decimal, participants []string) (map[string]decimal.Decimal, error) {
	if billSubtotal.IsZero() {
		return nil, ErrZeroSubtotal
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	if len(items) == 0 {
		return SplitWeighted(payer, billTotal, participants, nil)
	}

	subtotals := make(map[string]decimal.Decimal, len(participants))
	for _, p := range participants {
		subtotals[p] = decimal.Zero
	}
	for _, item := range items {
		if len(item.AssignedTo) == 0 {
			continue
		}
		perPerson := item.Amount.Div(decimal.NewFromInt(int64(len(item.AssignedTo))))
		for _, person := range item.AssignedTo {
			if sub, ok := subtotals[person]; ok {
				subtotals[person] = sub.Add(perPerson)
			}
		}
	}

	taxRate := billTotal.Sub(billSubtotal).Div(billSubtotal)
	shares := make(map[string]decimal.Decimal, len(subtotals))
	for p, sub := range subtotals {
		shares[p] = sub.Add(sub.Mul(taxRate)).Round(cents)
	}
	return settle(payer, shares), nil
}

// settle turns per-person shares into balances with payer as the creditor.
func settle(payer string, shares map[string]decimal.Decimal) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(shares)+1)
	owed := decimal.Zero
	for p, share := range shares {
		if p == payer || share.IsZero() {
			continue
		}
		balances[p] = share.Neg()
		owed = owed.Add(share)
	}
	balances[payer] = owed
	return balances
}
