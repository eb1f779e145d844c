package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrLedgerMismatch is returned by Verify when a ledger's cached totals have
// drifted from its history.
var ErrLedgerMismatch = errors.New("relation ledger does not match its history")

// HistoryEntry mirrors one transaction inside a RelationLedger.
type HistoryEntry struct {
	Currency Currency `json:"currency"`

	// Amount is signed from the ledger owner's point of view.
	Amount decimal.Decimal `json:"amount"`

	TransactionID    string    `json:"transactionId"`
	TransactionTitle string    `json:"transactionTitle"`
	Group            string    `json:"group,omitempty"`
	Date             time.Time `json:"date"`
}

// RelationLedger is one user's running record against one counterparty.
//
// Invariants:
//   - Balances[b] equals the sum of History amounts whose currency bucket is b
//   - NumTransactions equals len(History)
type RelationLedger struct {
	Balances        map[string]decimal.Decimal `json:"balances"`
	NumTransactions int                        `json:"numTransactions"`
	LastInteracted  time.Time                  `json:"lastInteracted"`

	// History is newest first.
	History []HistoryEntry `json:"history"`

	// DisplayName caches the counterparty's name.
	DisplayName string `json:"displayName"`
}

// NewRelationLedger returns an empty ledger with a zero USD bucket.
func NewRelationLedger(displayName string) RelationLedger {
	return RelationLedger{
		Balances:    map[string]decimal.Decimal{DefaultBucket: decimal.Zero},
		History:     []HistoryEntry{},
		DisplayName: displayName,
	}
}

// AddHistory records entry: its amount is added to the entry's currency
// bucket and the entry is prepended to History.
func (l *RelationLedger) AddHistory(entry HistoryEntry, now time.Time) {
	if l.Balances == nil {
		l.Balances = map[string]decimal.Decimal{DefaultBucket: decimal.Zero}
	}
	bucket := entry.Currency.Bucket()
	l.Balances[bucket] = normalize(l.Balances[bucket].Add(entry.Amount))
	l.NumTransactions++
	l.LastInteracted = now
	l.History = append([]HistoryEntry{entry}, l.History...)
}

// RemoveHistory removes the entry for transactionID and reverses its amount.
// It reports whether an entry was found; nothing changes otherwise.
//
// A non-default bucket that no longer has any history is dropped, so that
// RemoveHistory right after AddHistory restores Balances exactly.
func (l *RelationLedger) RemoveHistory(transactionID string) bool {
	idx := l.indexOf(transactionID)
	if idx < 0 {
		return false
	}
	entry := l.History[idx]
	l.History = append(l.History[:idx:idx], l.History[idx+1:]...)
	l.NumTransactions--

	bucket := entry.Currency.Bucket()
	l.Balances[bucket] = normalize(l.Balances[bucket].Sub(entry.Amount))
	if bucket != DefaultBucket && l.Balances[bucket].IsZero() && !l.hasBucket(bucket) {
		delete(l.Balances, bucket)
	}
	return true
}

// Contains reports whether the ledger mirrors transactionID.
func (l RelationLedger) Contains(transactionID string) bool {
	return l.indexOf(transactionID) >= 0
}

// Balance returns the balance in bucket.
func (l RelationLedger) Balance(bucket string) decimal.Decimal {
	return l.Balances[bucket]
}

// Verify recomputes the totals from History.
func (l RelationLedger) Verify() error {
	if l.NumTransactions != len(l.History) {
		return fmt.Errorf("%w: numTransactions %d, history %d", ErrLedgerMismatch, l.NumTransactions, len(l.History))
	}
	sums := make(map[string]decimal.Decimal)
	for _, h := range l.History {
		b := h.Currency.Bucket()
		sums[b] = sums[b].Add(h.Amount)
	}
	for b, v := range l.Balances {
		if !v.Equal(sums[b]) {
			return fmt.Errorf("%w: bucket %s is %s, history sums to %s", ErrLedgerMismatch, b, v, sums[b])
		}
	}
	for b, v := range sums {
		if _, ok := l.Balances[b]; !ok && !v.IsZero() {
			return fmt.Errorf("%w: bucket %s missing", ErrLedgerMismatch, b)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (l RelationLedger) Clone() RelationLedger {
	c := l
	c.Balances = make(map[string]decimal.Decimal, len(l.Balances))
	for k, v := range l.Balances {
		c.Balances[k] = v
	}
	c.History = append([]HistoryEntry(nil), l.History...)
	return c
}

func (l RelationLedger) indexOf(transactionID string) int {
	for i, h := range l.History {
		if h.TransactionID == transactionID {
			return i
		}
	}
	return -1
}

func (l RelationLedger) hasBucket(bucket string) bool {
	for _, h := range l.History {
		if h.Currency.Bucket() == bucket {
			return true
		}
	}
	return false
}

// normalize keeps zero results comparable with decimal.Zero.
func normalize(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return d
}
