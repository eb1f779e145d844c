package entity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/document"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

type transactionSchema struct{}

func (transactionSchema) Kind() storage.Kind { return storage.KindTransaction }

func (transactionSchema) Fields() []TransactionField { return transactionFields }

func (transactionSchema) Empty(id string) models.Transaction { return models.EmptyTransaction(id) }

func (transactionSchema) SetID(t *models.Transaction, id string) { t.ID = id }

func (transactionSchema) HandleSet(t *models.Transaction, f TransactionField, value any) error {
	var ok bool
	switch f {
	case TransactionTitle:
		t.Title, ok = value.(string)
	case TransactionCreatedBy:
		t.CreatedBy, ok = value.(string)
	case TransactionGroup:
		t.Group, ok = value.(string)
	case TransactionDate:
		t.Date, ok = value.(time.Time)
	case TransactionCurrency:
		t.Currency, ok = value.(models.Currency)
	case TransactionAmount:
		t.Amount, ok = value.(decimal.Decimal)
	case TransactionIsIOU:
		t.IsIOU, ok = value.(bool)
	default:
		// balances and settleGroups take per-key Updates only
		return document.Unsupported(document.OpSet, f)
	}
	if !ok {
		return document.Invalid(f, value)
	}
	return nil
}

func (transactionSchema) HandleAdd(_ *models.Transaction, f TransactionField, _ any) error {
	return document.Unsupported(document.OpAdd, f)
}

func (transactionSchema) HandleRemove(_ *models.Transaction, f TransactionField, _ any) error {
	return document.Unsupported(document.OpRemove, f)
}

func (transactionSchema) HandleUpdate(t *models.Transaction, f TransactionField, key string, value any) error {
	v, ok := value.(decimal.Decimal)
	if !ok {
		return document.Invalid(f, value)
	}
	switch f {
	case TransactionBalances:
		if t.Balances == nil {
			t.Balances = map[string]decimal.Decimal{}
		}
		t.Balances[key] = v
	case TransactionSettleGroups:
		if t.SettleGroups == nil {
			t.SettleGroups = map[string]decimal.Decimal{}
		}
		t.SettleGroups[key] = v
	default:
		return document.Unsupported(document.OpUpdate, f)
	}
	return nil
}

// TransactionManager is the unit of work for one transaction document.
type TransactionManager struct {
	*document.Manager[models.Transaction, TransactionField]
	repo *Repository
}

// Get returns the transaction snapshot.
func (m *TransactionManager) Get(ctx context.Context) (models.Transaction, error) {
	return m.Fetch(ctx)
}

func (m *TransactionManager) SetTitle(title string) { m.Enqueue(document.Set(TransactionTitle, title)) }

func (m *TransactionManager) SetCreatedBy(userID string) {
	m.Enqueue(document.Set(TransactionCreatedBy, userID))
}

func (m *TransactionManager) SetDate(t time.Time) { m.Enqueue(document.Set(TransactionDate, t)) }

func (m *TransactionManager) SetCurrency(c models.Currency) {
	m.Enqueue(document.Set(TransactionCurrency, c))
}

func (m *TransactionManager) SetAmount(amount decimal.Decimal) {
	m.Enqueue(document.Set(TransactionAmount, amount))
}

func (m *TransactionManager) SetGroup(groupID string) { m.Enqueue(document.Set(TransactionGroup, groupID)) }

func (m *TransactionManager) SetIOU(iou bool) { m.Enqueue(document.Set(TransactionIsIOU, iou)) }

// SetBalance upserts one participant's balance.
func (m *TransactionManager) SetBalance(userID string, amount decimal.Decimal) {
	m.Enqueue(document.Update(TransactionBalances, userID, amount))
}

// SetSettleGroup upserts the amount settled inside groupID.
func (m *TransactionManager) SetSettleGroup(groupID string, amount decimal.Decimal) {
	m.Enqueue(document.Update(TransactionSettleGroups, groupID, amount))
}

// load queues every field of t.
func (m *TransactionManager) load(t models.Transaction) {
	m.SetTitle(t.Title)
	m.SetCreatedBy(t.CreatedBy)
	m.SetDate(t.Date)
	m.SetCurrency(t.Currency)
	m.SetAmount(t.Amount)
	m.SetGroup(t.Group)
	m.SetIOU(t.IsIOU)
	for _, user := range t.Participants() {
		m.SetBalance(user, t.Balances[user])
	}
	for group, amount := range t.SettleGroups {
		m.SetSettleGroup(group, amount)
	}
}

// CleanDelete removes the transaction and everything that mirrors it:
// the history entries in every participant's ledgers, the entry in every
// affected group's transaction list and its share of the group balances.
// The transaction document is deleted last.
//
// Users are flushed first. If a user flush fails, no group is touched, the
// document is kept and the error wraps ErrPartialCascade. A group that no
// longer lists the transaction is skipped, so a retry after a failed group
// flush only finishes the remaining groups. It reports false if the
// transaction doesn't exist.
func (m *TransactionManager) CleanDelete(ctx context.Context) (bool, error) {
	exists, err := m.Exists(ctx)
	if err != nil || !exists {
		return false, err
	}
	t, err := m.Get(ctx)
	if err != nil {
		return false, err
	}
	id := t.ID
	logger := slog.With("transaction_id", id)

	for _, userID := range t.Participants() {
		um := m.repo.User(userID)
		u, err := um.Get(ctx)
		if err != nil {
			return false, fmt.Errorf("%w: failed to load user %s: %w", ErrPartialCascade, userID, err)
		}
		for counterparty, ledger := range u.Relations {
			if ledger.Contains(id) {
				um.RemoveHistory(counterparty, id)
			}
		}
		um.RemoveTransaction(id)
		if _, err := um.Flush(ctx); err != nil {
			logger.Error("CleanDelete aborted on user flush", "user_id", userID, "error", err)
			return false, fmt.Errorf("%w: failed to update user %s: %w", ErrPartialCascade, userID, err)
		}
	}

	bucket := t.Currency.Bucket()
	for _, groupID := range t.AffectedGroups() {
		gm := m.repo.Group(groupID)
		g, err := gm.Get(ctx)
		if err != nil {
			return false, fmt.Errorf("%w: failed to load group %s: %w", ErrPartialCascade, groupID, err)
		}
		// already detached by an earlier, interrupted run
		if !slices.Contains(g.Transactions, id) {
			continue
		}
		gm.RemoveTransaction(id)
		for userID, share := range t.GroupShares(groupID) {
			gm.AdjustBalance(userID, bucket, share.Neg())
		}
		if _, err := gm.Flush(ctx); err != nil {
			logger.Error("CleanDelete aborted on group flush", "group_id", groupID, "error", err)
			return false, fmt.Errorf("%w: failed to update group %s: %w", ErrPartialCascade, groupID, err)
		}
	}

	if _, err := m.Delete(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPartialCascade, err)
	}
	logger.Info("Transaction deleted", "participants", len(t.Balances))
	return true, nil
}
