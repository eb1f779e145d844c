package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Relation is one directed debtor -> creditor edge derived from a transaction.
type Relation struct {
	Debtor   string
	Creditor string

	// Amount is signed from the debtor's point of view, so it is negative.
	Amount decimal.Decimal
}

// LedgerDelta is the amount to record in Owner's ledger against Counterparty.
type LedgerDelta struct {
	Owner        string
	Counterparty string
	Amount       decimal.Decimal
}

// Net splits a zero-sum balance map into pairwise relations.
//
// Every debtor owes every creditor in proportion to the creditor's share of
// the total credit:
//
//	amount(d -> c) = balances[d] * balances[c] / totalCredit
//
// So 3 debtors and 2 creditors yield 6 relations. This is not a
// minimum-transfer settlement. A user listed on both sides is never paired
// with itself. Relations are ordered by debtor, then creditor.
func Net(balances map[string]decimal.Decimal) []Relation {
	var debtors, creditors []string
	totalCredit := decimal.Zero
	for user, v := range balances {
		switch {
		case v.IsNegative():
			debtors = append(debtors, user)
		case v.IsPositive():
			creditors = append(creditors, user)
			totalCredit = totalCredit.Add(v)
		}
	}
	if totalCredit.IsZero() {
		return nil
	}
	sort.Strings(debtors)
	sort.Strings(creditors)

	relations := make([]Relation, 0, len(debtors)*len(creditors))
	for _, d := range debtors {
		for _, c := range creditors {
			if d == c {
				continue
			}
			relations = append(relations, Relation{
				Debtor:   d,
				Creditor: c,
				Amount:   balances[d].Mul(balances[c]).Div(totalCredit),
			})
		}
	}
	return relations
}

// Deltas expands relations into the entries both sides record: the debtor's
// ledger gets the (negative) relation amount, the creditor's ledger gets its
// negation. Deltas for the same ordered pair are summed.
func Deltas(relations []Relation) []LedgerDelta {
	type pair struct{ owner, counterparty string }
	sums := make(map[pair]decimal.Decimal)
	var order []pair
	add := func(p pair, amount decimal.Decimal) {
		if _, ok := sums[p]; !ok {
			order = append(order, p)
		}
		sums[p] = sums[p].Add(amount)
	}
	for _, r := range relations {
		add(pair{r.Debtor, r.Creditor}, r.Amount)
		add(pair{r.Creditor, r.Debtor}, r.Amount.Neg())
	}

	deltas := make([]LedgerDelta, 0, len(order))
	for _, p := range order {
		deltas = append(deltas, LedgerDelta{Owner: p.owner, Counterparty: p.counterparty, Amount: sums[p]})
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		if deltas[i].Owner != deltas[j].Owner {
			return deltas[i].Owner < deltas[j].Owner
		}
		return deltas[i].Counterparty < deltas[j].Counterparty
	})
	return deltas
}

// Incoming sums the relation amounts directed at each creditor, as positive
// magnitudes.
func Incoming(relations []Relation) map[string]decimal.Decimal {
	in := make(map[string]decimal.Decimal)
	for _, r := range relations {
		in[r.Creditor] = in[r.Creditor].Sub(r.Amount)
	}
	return in
}
