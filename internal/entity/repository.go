// Package entity provides the typed managers for users, groups and
// transactions, and the operations that keep them consistent with each other.
package entity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/document"
	"github.com/mmynk/splitledger/internal/ids"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Repository hands out managers bound to one store. It holds no documents
// itself apart from the optional session caches.
type Repository struct {
	store            storage.Store
	users            document.Cache[models.User]
	groups           document.Cache[models.Group]
	transactions     document.Cache[models.Transaction]
	inviteCodeLength int
	now              func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithSessionCache makes managers prefer documents this process already
// read or wrote over a store read.
func WithSessionCache() Option {
	return func(r *Repository) {
		r.users = document.NewSessionCache[models.User]()
		r.groups = document.NewSessionCache[models.Group]()
		r.transactions = document.NewSessionCache[models.Transaction]()
	}
}

// WithInviteCodeLength sets the length of generated group invite codes.
func WithInviteCodeLength(n int) Option {
	return func(r *Repository) {
		r.inviteCodeLength = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// NewRepository returns a Repository over store.
func NewRepository(store storage.Store, opts ...Option) *Repository {
	r := &Repository{
		store:            store,
		inviteCodeLength: ids.DefaultLength,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// User returns a manager for the user with id. An empty id starts a new user.
func (r *Repository) User(id string) *UserManager {
	return newUserManager(r.store, id, r.users)
}

// Group returns a manager for the group with id. An empty id starts a new group.
func (r *Repository) Group(id string) *GroupManager {
	return &GroupManager{
		Manager: document.NewManager[models.Group, GroupField](r.store, groupSchema{}, id, r.groups),
		repo:    r,
	}
}

// Transaction returns a manager for the transaction with id.
func (r *Repository) Transaction(id string) *TransactionManager {
	return &TransactionManager{
		Manager: document.NewManager[models.Transaction, TransactionField](r.store, transactionSchema{}, id, r.transactions),
		repo:    r,
	}
}

// NewGroup queues a new group created by creator, who becomes its first
// member. Nothing is written until the group is flushed.
func (r *Repository) NewGroup(name, creator string) *GroupManager {
	gm := r.Group("")
	gm.SetName(name)
	gm.SetCreatedBy(creator)
	gm.SetCreatedAt(r.now())
	gm.RegenerateInviteCode()
	gm.AddUser(creator)
	return gm
}

// CreateGroup writes a new group and adds it to the creator's groups.
func (r *Repository) CreateGroup(ctx context.Context, name, creator string) (*GroupManager, error) {
	gm := r.NewGroup(name, creator)
	if _, err := gm.Flush(ctx); err != nil {
		return nil, err
	}
	um := r.User(creator)
	um.AddGroup(gm.ID())
	if _, err := um.Flush(ctx); err != nil {
		return gm, fmt.Errorf("%w: failed to update creator %s: %w", ErrPartialCascade, creator, err)
	}
	slog.Info("Group created", "group_id", gm.ID(), "created_by", creator)
	return gm, nil
}

// RecordTransaction writes t and mirrors it everywhere it belongs:
//   - every pair of participants gets the netted history entry on both sides
//   - every participant gets the transaction in their list
//   - every participant except the creator gets a notification
//   - every affected group gets the transaction (newest first) and its share
//     of the balances
//
// Every affected group must already exist; otherwise the error wraps
// storage.ErrNotFound and nothing is written.
//
// The transaction is written first, then users, then groups. A failure after
// the transaction write wraps ErrPartialCascade; CleanDelete on the returned
// manager undoes whatever was written.
func (r *Repository) RecordTransaction(ctx context.Context, t models.Transaction) (*TransactionManager, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for _, groupID := range t.AffectedGroups() {
		exists, err := r.Group(groupID).Exists(ctx)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
	}

	tm := r.Transaction(t.ID)
	tm.load(t)
	if _, err := tm.Flush(ctx); err != nil {
		return nil, err
	}
	id := tm.ID()
	logger := slog.With("transaction_id", id)

	participants := t.Participants()
	users := make(map[string]*UserManager, len(participants))
	names := make(map[string]string, len(participants))
	for _, userID := range participants {
		um := r.User(userID)
		name, err := um.DisplayName(ctx)
		if err != nil {
			return tm, fmt.Errorf("%w: failed to load user %s: %w", ErrPartialCascade, userID, err)
		}
		users[userID] = um
		names[userID] = name
	}

	now := r.now()
	for _, delta := range calculator.Deltas(calculator.Net(t.Balances)) {
		users[delta.Owner].AddHistory(delta.Counterparty, names[delta.Counterparty], models.HistoryEntry{
			Currency:         t.Currency,
			Amount:           delta.Amount,
			TransactionID:    id,
			TransactionTitle: t.Title,
			Group:            t.Group,
			Date:             t.Date,
		}, now)
	}

	for _, userID := range participants {
		um := users[userID]
		um.AddTransaction(id)
		if userID != t.CreatedBy {
			um.Notify(transactionNotification(t, id, userID, names[t.CreatedBy]))
		}
	}
	for _, userID := range participants {
		if _, err := users[userID].Flush(ctx); err != nil {
			logger.Error("RecordTransaction stopped on user flush", "user_id", userID, "error", err)
			return tm, fmt.Errorf("%w: failed to update user %s: %w", ErrPartialCascade, userID, err)
		}
	}

	bucket := t.Currency.Bucket()
	for _, groupID := range t.AffectedGroups() {
		gm := r.Group(groupID)
		gm.AddTransaction(id)
		for userID, share := range t.GroupShares(groupID) {
			gm.AdjustBalance(userID, bucket, share)
		}
		if _, err := gm.Flush(ctx); err != nil {
			logger.Error("RecordTransaction stopped on group flush", "group_id", groupID, "error", err)
			return tm, fmt.Errorf("%w: failed to update group %s: %w", ErrPartialCascade, groupID, err)
		}
	}

	logger.Info("Transaction recorded",
		"participants", len(participants),
		"groups", len(t.AffectedGroups()),
	)
	return tm, nil
}

func transactionNotification(t models.Transaction, id, userID, creatorName string) models.Notification {
	value := t.Balances[userID]
	color := models.ColorCredit
	if value.IsNegative() {
		color = models.ColorDebit
	}
	if creatorName == "" {
		creatorName = "Someone"
	}
	return models.Notification{
		Type:          models.NotificationTransaction,
		Message:       fmt.Sprintf("%s added %q", creatorName, t.Title),
		Target:        id,
		Color:         color,
		CurrencyType:  t.Currency.Type,
		CurrencyLegal: t.Currency.Legal,
		Value:         value,
	}
}

// CleanDelete removes the group after deleting each of its transactions
// through TransactionManager.CleanDelete, then drops the group from its
// members' and invitees' documents. It reports false if the group doesn't
// exist.
func (m *GroupManager) CleanDelete(ctx context.Context) (bool, error) {
	exists, err := m.Exists(ctx)
	if err != nil || !exists {
		return false, err
	}
	g, err := m.Get(ctx)
	if err != nil {
		return false, err
	}

	for _, txID := range g.Transactions {
		if _, err := m.repo.Transaction(txID).CleanDelete(ctx); err != nil {
			return false, fmt.Errorf("failed to delete transaction %s of group %s: %w", txID, g.ID, err)
		}
	}

	for _, userID := range g.Users {
		um := m.repo.User(userID)
		um.RemoveGroup(g.ID)
		um.UnmuteGroup(g.ID)
		if _, err := um.Flush(ctx); err != nil {
			return false, fmt.Errorf("%w: failed to update member %s: %w", ErrPartialCascade, userID, err)
		}
	}
	for _, userID := range g.InvitedUsers {
		um := m.repo.User(userID)
		um.RemoveGroupInvitation(g.ID)
		if _, err := um.Flush(ctx); err != nil {
			return false, fmt.Errorf("%w: failed to update invitee %s: %w", ErrPartialCascade, userID, err)
		}
	}

	if _, err := m.Delete(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", ErrPartialCascade, err)
	}
	slog.Info("Group deleted", "group_id", g.ID, "transactions", len(g.Transactions))
	return true, nil
}
