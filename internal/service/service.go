// Package service exposes the ledger over Connect.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/document"
	"github.com/mmynk/splitledger/internal/entity"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// LedgerService implements the splitledger.v1.LedgerService procedures on
// top of an entity.Repository. Every procedure acts as the authenticated
// caller.
type LedgerService struct {
	store storage.Store
	repo  *entity.Repository
	poll  storage.PollOptions
}

// NewLedgerService creates a LedgerService over store.
func NewLedgerService(store storage.Store, repo *entity.Repository) *LedgerService {
	return &LedgerService{store: store, repo: repo, poll: storage.DefaultPoll}
}

// request is the union of the plain fields procedures read.
type request struct {
	UserID         string `json:"userId"`
	GroupID        string `json:"groupId"`
	TransactionID  string `json:"transactionId"`
	CounterpartyID string `json:"counterpartyId"`
	Name           string `json:"name"`
	InviteCode     string `json:"inviteCode"`
}

type itemRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	AssignedTo  []string        `json:"assignedTo"`
}

// recordRequest describes a new transaction. Either Balances is given, or
// the balances are split from Amount: by Items (with Subtotal for
// proportional tax) when present, otherwise evenly over Participants,
// weighted by the group's family multipliers when the group is in family
// mode. Payer defaults to the caller.
type recordRequest struct {
	Title        string                     `json:"title"`
	Date         time.Time                  `json:"date"`
	Currency     *models.Currency           `json:"currency"`
	Amount       decimal.Decimal            `json:"amount"`
	Group        string                     `json:"group"`
	IsIOU        bool                       `json:"isIOU"`
	Balances     map[string]decimal.Decimal `json:"balances"`
	SettleGroups map[string]decimal.Decimal `json:"settleGroups"`

	Payer        string          `json:"payer"`
	Participants []string        `json:"participants"`
	Items        []itemRequest   `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

func caller(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("no caller on context"))
	}
	return userID, nil
}

func decode[T any](req *connect.Request[structpb.Struct]) (T, error) {
	var v T
	if err := document.Decode(req.Msg, &v); err != nil {
		return v, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return v, nil
}

// respond encodes doc and adds its id.
func respond(id string, doc any) (*connect.Response[structpb.Struct], error) {
	msg, err := document.Encode(doc)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if msg.Fields == nil {
		msg.Fields = map[string]*structpb.Value{}
	}
	if id != "" {
		msg.Fields["id"] = structpb.NewStringValue(id)
	}
	return connect.NewResponse(msg), nil
}

func (s *LedgerService) memberGroup(ctx context.Context, groupID, userID string) (*entity.GroupManager, models.Group, error) {
	gm := s.repo.Group(groupID)
	exists, err := gm.Exists(ctx)
	if err != nil {
		return nil, models.Group{}, err
	}
	if !exists {
		return nil, models.Group{}, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	g, err := gm.Get(ctx)
	if err != nil {
		return nil, models.Group{}, err
	}
	if !slices.Contains(g.Users, userID) {
		return nil, models.Group{}, fmt.Errorf("%w of group %s", errNotMember, groupID)
	}
	return gm, g, nil
}

func (s *LedgerService) participantTransaction(ctx context.Context, txID, userID string) (*entity.TransactionManager, models.Transaction, error) {
	tm := s.repo.Transaction(txID)
	exists, err := tm.Exists(ctx)
	if err != nil {
		return nil, models.Transaction{}, err
	}
	if !exists {
		return nil, models.Transaction{}, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
	}
	t, err := tm.Get(ctx)
	if err != nil {
		return nil, models.Transaction{}, err
	}
	if _, ok := t.Balances[userID]; !ok && t.CreatedBy != userID {
		return nil, models.Transaction{}, fmt.Errorf("%w of transaction %s", errNotMember, txID)
	}
	return tm, t, nil
}

// GetUser returns the caller's user document. Reads: userId (optional, must
// be the caller).
func (s *LedgerService) GetUser(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.UserID != "" && r.UserID != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("cannot read user %s", r.UserID))
	}

	u, err := s.repo.User(userID).Get(ctx)
	if err != nil {
		slog.Error("GetUser failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	return respond(userID, u)
}

// GetGroup returns a group the caller belongs to or is invited to.
// Reads: groupId.
func (s *LedgerService) GetGroup(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.GroupID == "" {
		return nil, toConnectError(fmt.Errorf("%w: groupId", errMissingArgs))
	}

	gm := s.repo.Group(r.GroupID)
	exists, err := gm.Exists(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !exists {
		return nil, toConnectError(fmt.Errorf("group %s: %w", r.GroupID, storage.ErrNotFound))
	}
	g, err := gm.Get(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !slices.Contains(g.Users, userID) && !slices.Contains(g.InvitedUsers, userID) {
		return nil, toConnectError(fmt.Errorf("%w of group %s", errNotMember, r.GroupID))
	}
	return respond(g.ID, g)
}

// GetTransaction returns a transaction the caller takes part in.
// Reads: transactionId.
func (s *LedgerService) GetTransaction(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.TransactionID == "" {
		return nil, toConnectError(fmt.Errorf("%w: transactionId", errMissingArgs))
	}

	_, t, err := s.participantTransaction(ctx, r.TransactionID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(t.ID, t)
}

// GetRelation returns the caller's ledger against a counterparty.
// Reads: counterpartyId.
func (s *LedgerService) GetRelation(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.CounterpartyID == "" {
		return nil, toConnectError(fmt.Errorf("%w: counterpartyId", errMissingArgs))
	}

	ledger, err := s.repo.User(userID).Relation(ctx, r.CounterpartyID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := ledger.Verify(); err != nil {
		slog.Warn("Relation ledger out of sync", "user_id", userID, "counterparty_id", r.CounterpartyID, "error", err)
	}
	return respond("", ledger)
}

// CreateGroup creates a group with the caller as its first member.
// Reads: name.
func (s *LedgerService) CreateGroup(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.Name == "" {
		return nil, toConnectError(fmt.Errorf("%w: name", errMissingArgs))
	}
	slog.Info("CreateGroup request received", "name", r.Name, "user_id", userID)

	gm, err := s.repo.CreateGroup(ctx, r.Name, userID)
	if err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}
	g, err := gm.Get(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(g.ID, g)
}

// RecordTransaction records a transaction created by the caller. See
// recordRequest for the fields it reads.
func (s *LedgerService) RecordTransaction(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[recordRequest](req)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordTransaction request received",
		"title", r.Title,
		"group_id", r.Group,
		"user_id", userID,
	)

	t, err := s.buildTransaction(ctx, userID, r)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := s.checkTransaction(ctx, userID, t); err != nil {
		slog.Warn("RecordTransaction rejected", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	tm, err := s.repo.RecordTransaction(ctx, t)
	if err != nil {
		slog.Error("RecordTransaction failed", "error", err)
		return nil, toConnectError(err)
	}
	if _, err := storage.WaitForDocument(ctx, s.store, storage.KindTransaction, tm.ID(), s.poll); err != nil {
		return nil, toConnectError(err)
	}

	recorded, err := tm.Get(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	slog.Info("Transaction recorded", "transaction_id", recorded.ID, "participants", len(recorded.Balances))
	return respond(recorded.ID, recorded)
}

func (s *LedgerService) buildTransaction(ctx context.Context, userID string, r recordRequest) (models.Transaction, error) {
	t := models.EmptyTransaction("")
	t.Title = r.Title
	t.CreatedBy = userID
	t.Date = r.Date
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	if r.Currency != nil {
		t.Currency = *r.Currency
	}
	t.Amount = r.Amount
	t.Group = r.Group
	t.IsIOU = r.IsIOU
	for g, v := range r.SettleGroups {
		t.SettleGroups[g] = v
	}

	var weights map[string]decimal.Decimal
	if r.Group != "" {
		_, g, err := s.memberGroup(ctx, r.Group, userID)
		if err != nil {
			return t, err
		}
		if g.FamilyMode {
			weights = g.FamilyMultipliers
		}
	}

	if len(r.Balances) > 0 {
		for u, v := range r.Balances {
			t.Balances[u] = v
		}
		return t, nil
	}

	payer := r.Payer
	if payer == "" {
		payer = userID
	}
	var (
		balances map[string]decimal.Decimal
		err      error
	)
	if len(r.Items) > 0 {
		items := make([]calculator.Item, 0, len(r.Items))
		for _, it := range r.Items {
			items = append(items, calculator.Item{Description: it.Description, Amount: it.Amount, AssignedTo: it.AssignedTo})
		}
		subtotal := r.Subtotal
		if subtotal.IsZero() {
			subtotal = r.Amount
		}
		balances, err = calculator.SplitItemized(payer, items, r.Amount, subtotal, r.Participants)
	} else {
		balances, err = calculator.SplitWeighted(payer, r.Amount, r.Participants, weights)
	}
	if err != nil {
		return t, err
	}
	t.Balances = balances
	return t, nil
}

// checkTransaction rejects transactions the caller may not record. The
// caller must take part, and every participant must be a member of every
// group the transaction touches.
func (s *LedgerService) checkTransaction(ctx context.Context, userID string, t models.Transaction) error {
	participants := t.Participants()
	if slices.Contains(participants, "") {
		return fmt.Errorf("%w: empty user id", errBadParticipant)
	}
	if !slices.Contains(participants, userID) {
		return fmt.Errorf("%w: %s", errNotParticipant, userID)
	}
	for _, groupID := range t.AffectedGroups() {
		if groupID == "" {
			return fmt.Errorf("%w: settleGroups", errMissingArgs)
		}
		_, g, err := s.memberGroup(ctx, groupID, userID)
		if err != nil {
			return err
		}
		for _, u := range participants {
			if !slices.Contains(g.Users, u) {
				return fmt.Errorf("%w: %s is not a member of group %s", errBadParticipant, u, groupID)
			}
		}
	}
	return nil
}

// DeleteTransaction removes a transaction the caller takes part in, with
// all of its ledger and group entries. Reads: transactionId.
func (s *LedgerService) DeleteTransaction(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.TransactionID == "" {
		return nil, toConnectError(fmt.Errorf("%w: transactionId", errMissingArgs))
	}
	slog.Info("DeleteTransaction request received", "transaction_id", r.TransactionID, "user_id", userID)

	tm, _, err := s.participantTransaction(ctx, r.TransactionID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	deleted, err := tm.CleanDelete(ctx)
	if err != nil {
		slog.Error("DeleteTransaction failed", "transaction_id", r.TransactionID, "error", err)
		return nil, toConnectError(err)
	}
	return respond("", map[string]bool{"deleted": deleted})
}

// DeleteGroup removes a group created by the caller together with all of
// its transactions. Reads: groupId.
func (s *LedgerService) DeleteGroup(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.GroupID == "" {
		return nil, toConnectError(fmt.Errorf("%w: groupId", errMissingArgs))
	}
	slog.Info("DeleteGroup request received", "group_id", r.GroupID, "user_id", userID)

	gm, g, err := s.memberGroup(ctx, r.GroupID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if g.CreatedBy != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("only the creator can delete group %s", r.GroupID))
	}
	deleted, err := gm.CleanDelete(ctx)
	if err != nil {
		slog.Error("DeleteGroup failed", "group_id", r.GroupID, "error", err)
		return nil, toConnectError(err)
	}
	return respond("", map[string]bool{"deleted": deleted})
}

// InviteToGroup invites a user to a group the caller belongs to.
// Reads: groupId, userId.
func (s *LedgerService) InviteToGroup(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.GroupID == "" || r.UserID == "" {
		return nil, toConnectError(fmt.Errorf("%w: groupId, userId", errMissingArgs))
	}
	if _, _, err := s.memberGroup(ctx, r.GroupID, userID); err != nil {
		return nil, toConnectError(err)
	}
	if err := s.repo.InviteToGroup(ctx, r.GroupID, userID, r.UserID); err != nil {
		return nil, toConnectError(err)
	}
	return respond("", map[string]string{"groupId": r.GroupID, "userId": r.UserID})
}

// JoinGroup makes the caller a member, by invitation or invite code.
// Reads: groupId, inviteCode (optional).
func (s *LedgerService) JoinGroup(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.GroupID == "" {
		return nil, toConnectError(fmt.Errorf("%w: groupId", errMissingArgs))
	}
	if err := s.repo.JoinGroup(ctx, r.GroupID, userID, r.InviteCode); err != nil {
		return nil, toConnectError(err)
	}
	g, err := s.repo.Group(r.GroupID).Get(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(g.ID, g)
}

// RegenerateInviteCode replaces a group's invite code. Reads: groupId.
func (s *LedgerService) RegenerateInviteCode(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	gm, _, err := s.memberGroup(ctx, r.GroupID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	code := gm.RegenerateInviteCode()
	if _, err := gm.Flush(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return respond("", map[string]string{"inviteCode": code})
}

// SendFriendRequest asks another user to become the caller's friend.
// Reads: userId.
func (s *LedgerService) SendFriendRequest(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.UserID == "" || r.UserID == userID {
		return nil, toConnectError(fmt.Errorf("%w: userId", errMissingArgs))
	}
	if err := s.repo.SendFriendRequest(ctx, userID, r.UserID); err != nil {
		return nil, toConnectError(err)
	}
	return respond("", map[string]string{"userId": r.UserID})
}

// AcceptFriendRequest accepts a pending request. Reads: userId.
func (s *LedgerService) AcceptFriendRequest(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := decode[request](req)
	if err != nil {
		return nil, err
	}
	if r.UserID == "" {
		return nil, toConnectError(fmt.Errorf("%w: userId", errMissingArgs))
	}
	if err := s.repo.AcceptFriendRequest(ctx, userID, r.UserID); err != nil {
		return nil, toConnectError(err)
	}
	return respond("", map[string]string{"userId": r.UserID})
}
