package service_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/entity"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage/memory"
)

type testServer struct {
	client *service.LedgerServiceClient
	jwt    *auth.JWTManager
	repo   *entity.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	repo := entity.NewRepository(store)
	jwt := auth.NewJWTManager("test-secret", time.Hour)

	path, handler := service.NewLedgerServiceHandler(
		service.NewLedgerService(store, repo),
		connect.WithInterceptors(middleware.RequireAuth(jwt), middleware.LoggingInterceptor()),
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	require.Equal(t, "/splitledger.v1.LedgerService/", path)

	return &testServer{
		client: service.NewLedgerServiceClient(srv.Client(), srv.URL),
		jwt:    jwt,
		repo:   repo,
	}
}

func (s *testServer) call(t *testing.T, userID, procedure string, body map[string]any) (*structpb.Struct, error) {
	t.Helper()
	msg, err := structpb.NewStruct(body)
	require.NoError(t, err)
	req := connect.NewRequest(msg)
	if userID != "" {
		token, err := s.jwt.Generate(userID, userID+"@example.com")
		require.NoError(t, err)
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Call(context.Background(), procedure, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (s *testServer) mustCall(t *testing.T, userID, procedure string, body map[string]any) map[string]any {
	t.Helper()
	msg, err := s.call(t, userID, procedure, body)
	require.NoError(t, err)
	return msg.AsMap()
}

func requireCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, connect.CodeOf(err), "error: %v", err)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	_, err := s.call(t, "", service.GetUserProcedure, map[string]any{})
	requireCode(t, err, connect.CodeUnauthenticated)

	_, err = s.call(t, "alice", service.GetUserProcedure, map[string]any{"userId": "bob"})
	requireCode(t, err, connect.CodePermissionDenied)

	got := s.mustCall(t, "alice", service.GetUserProcedure, map[string]any{})
	assert.Equal(t, "alice", got["id"])
}

func TestUnknownProcedure(t *testing.T) {
	s := newTestServer(t)
	_, err := s.client.Call(context.Background(), "/splitledger.v1.LedgerService/Nope", connect.NewRequest(&structpb.Struct{}))
	requireCode(t, err, connect.CodeUnimplemented)
}

func TestGroupLifecycle(t *testing.T) {
	s := newTestServer(t)

	_, err := s.call(t, "alice", service.CreateGroupProcedure, map[string]any{})
	requireCode(t, err, connect.CodeInvalidArgument)

	group := s.mustCall(t, "alice", service.CreateGroupProcedure, map[string]any{"name": "Trip"})
	groupID, _ := group["id"].(string)
	require.NotEmpty(t, groupID)
	assert.Equal(t, "Trip", group["name"])

	_, err = s.call(t, "bob", service.GetGroupProcedure, map[string]any{"groupId": groupID})
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = s.call(t, "bob", service.JoinGroupProcedure, map[string]any{"groupId": groupID})
	requireCode(t, err, connect.CodeFailedPrecondition)

	s.mustCall(t, "alice", service.InviteToGroupProcedure, map[string]any{"groupId": groupID, "userId": "bob"})
	invited := s.mustCall(t, "bob", service.GetGroupProcedure, map[string]any{"groupId": groupID})
	assert.Contains(t, invited["invitedUsers"], "bob")

	joined := s.mustCall(t, "bob", service.JoinGroupProcedure, map[string]any{"groupId": groupID})
	assert.ElementsMatch(t, []any{"alice", "bob"}, joined["users"])

	code := s.mustCall(t, "bob", service.RegenerateInviteCodeProcedure, map[string]any{"groupId": groupID})
	inviteCode, _ := code["inviteCode"].(string)
	require.NotEmpty(t, inviteCode)
	s.mustCall(t, "carol", service.JoinGroupProcedure, map[string]any{"groupId": groupID, "inviteCode": inviteCode})

	_, err = s.call(t, "bob", service.DeleteGroupProcedure, map[string]any{"groupId": groupID})
	requireCode(t, err, connect.CodePermissionDenied)

	deleted := s.mustCall(t, "alice", service.DeleteGroupProcedure, map[string]any{"groupId": groupID})
	assert.Equal(t, true, deleted["deleted"])

	_, err = s.call(t, "alice", service.GetGroupProcedure, map[string]any{"groupId": groupID})
	requireCode(t, err, connect.CodeNotFound)

	user := s.mustCall(t, "carol", service.GetUserProcedure, map[string]any{})
	assert.Empty(t, user["groups"])
}

func TestRecordTransaction(t *testing.T) {
	s := newTestServer(t)
	group := s.mustCall(t, "alice", service.CreateGroupProcedure, map[string]any{"name": "Flat"})
	groupID := group["id"].(string)
	s.mustCall(t, "alice", service.InviteToGroupProcedure, map[string]any{"groupId": groupID, "userId": "bob"})
	s.mustCall(t, "bob", service.JoinGroupProcedure, map[string]any{"groupId": groupID})
	s.mustCall(t, "alice", service.InviteToGroupProcedure, map[string]any{"groupId": groupID, "userId": "carol"})
	s.mustCall(t, "carol", service.JoinGroupProcedure, map[string]any{"groupId": groupID})

	tests := []struct {
		name     string
		caller   string
		body     map[string]any
		balances map[string]string
		code     connect.Code
	}{
		{
			name: "explicit balances",
			body: map[string]any{
				"title":    "Rent",
				"amount":   "100",
				"group":    groupID,
				"balances": map[string]any{"alice": "100", "bob": "-100"},
			},
			balances: map[string]string{"alice": "100", "bob": "-100"},
		},
		{
			name: "even split",
			body: map[string]any{
				"title":        "Groceries",
				"amount":       "30",
				"group":        groupID,
				"participants": []any{"alice", "bob", "carol"},
			},
			balances: map[string]string{"alice": "20", "bob": "-10", "carol": "-10"},
		},
		{
			name: "itemized with tax",
			body: map[string]any{
				"title":    "Dinner",
				"amount":   "110",
				"subtotal": "100",
				"payer":    "bob",
				"items": []any{
					map[string]any{"description": "Pasta", "amount": "60", "assignedTo": []any{"alice"}},
					map[string]any{"description": "Wine", "amount": "40", "assignedTo": []any{"alice", "bob"}},
				},
				"participants": []any{"alice", "bob"},
			},
			balances: map[string]string{"alice": "-88", "bob": "88"},
		},
		{
			name: "unbalanced",
			body: map[string]any{
				"title":    "Broken",
				"balances": map[string]any{"alice": "10", "bob": "-5"},
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "no participants",
			body: map[string]any{"title": "Empty", "amount": "10"},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "foreign group",
			body: map[string]any{
				"title":    "Sneaky",
				"group":    "elsewhere",
				"balances": map[string]any{"alice": "1", "bob": "-1"},
			},
			code: connect.CodeNotFound,
		},
		{
			name: "caller takes no part",
			body: map[string]any{
				"title":    "For others",
				"balances": map[string]any{"bob": "10", "carol": "-10"},
			},
			code: connect.CodePermissionDenied,
		},
		{
			name:   "outsider writes to a group",
			caller: "mallory",
			body: map[string]any{
				"title":        "Forged",
				"balances":     map[string]any{"alice": "50", "bob": "-50"},
				"settleGroups": map[string]any{groupID: "50"},
			},
			code: connect.CodePermissionDenied,
		},
		{
			name:   "outsider settles into a group",
			caller: "mallory",
			body: map[string]any{
				"title":        "Forged",
				"balances":     map[string]any{"mallory": "50", "bob": "-50"},
				"settleGroups": map[string]any{groupID: "50"},
			},
			code: connect.CodePermissionDenied,
		},
		{
			name: "participant outside the group",
			body: map[string]any{
				"title":    "Guest",
				"group":    groupID,
				"balances": map[string]any{"alice": "5", "dave": "-5"},
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "empty user id",
			body: map[string]any{
				"title":    "Blank",
				"balances": map[string]any{"alice": "5", "": "-5"},
			},
			code: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := tt.caller
			if caller == "" {
				caller = "alice"
			}
			msg, err := s.call(t, caller, service.RecordTransactionProcedure, tt.body)
			if tt.code != 0 {
				requireCode(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			got := msg.AsMap()
			assert.Equal(t, "alice", got["createdBy"])
			assert.NotEmpty(t, got["date"])
			balances, _ := got["balances"].(map[string]any)
			require.Len(t, balances, len(tt.balances))
			for u, want := range tt.balances {
				assert.Equal(t, want, fmt.Sprint(balances[u]), "balance of %s", u)
			}
		})
	}

	relation := s.mustCall(t, "bob", service.GetRelationProcedure, map[string]any{"counterpartyId": "alice"})
	assert.Equal(t, float64(3), relation["numTransactions"], "rejected requests leave no history")

	g, err := s.repo.Group(groupID).Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, g.Transactions, 2)
	assert.Equal(t, "120", g.Balance("alice", "USD").String())
	assert.Equal(t, "-110", g.Balance("bob", "USD").String())
}

func TestDeleteTransaction(t *testing.T) {
	s := newTestServer(t)
	recorded := s.mustCall(t, "alice", service.RecordTransactionProcedure, map[string]any{
		"title":    "Taxi",
		"balances": map[string]any{"alice": "12", "bob": "-12"},
	})
	txID := recorded["id"].(string)

	_, err := s.call(t, "mallory", service.GetTransactionProcedure, map[string]any{"transactionId": txID})
	requireCode(t, err, connect.CodePermissionDenied)

	got := s.mustCall(t, "bob", service.GetTransactionProcedure, map[string]any{"transactionId": txID})
	assert.Equal(t, "Taxi", got["title"])

	_, err = s.call(t, "mallory", service.DeleteTransactionProcedure, map[string]any{"transactionId": txID})
	requireCode(t, err, connect.CodePermissionDenied)

	deleted := s.mustCall(t, "bob", service.DeleteTransactionProcedure, map[string]any{"transactionId": txID})
	assert.Equal(t, true, deleted["deleted"])

	_, err = s.call(t, "bob", service.GetTransactionProcedure, map[string]any{"transactionId": txID})
	requireCode(t, err, connect.CodeNotFound)

	ledger, err := s.repo.User("alice").Relation(context.Background(), "bob")
	require.NoError(t, err)
	assert.Zero(t, ledger.NumTransactions)
	assert.True(t, ledger.Balance("USD").IsZero())
}

func TestFriendRequests(t *testing.T) {
	s := newTestServer(t)

	_, err := s.call(t, "alice", service.SendFriendRequestProcedure, map[string]any{"userId": "alice"})
	requireCode(t, err, connect.CodeInvalidArgument)

	_, err = s.call(t, "bob", service.AcceptFriendRequestProcedure, map[string]any{"userId": "alice"})
	requireCode(t, err, connect.CodeFailedPrecondition)

	s.mustCall(t, "alice", service.SendFriendRequestProcedure, map[string]any{"userId": "bob"})
	s.mustCall(t, "bob", service.AcceptFriendRequestProcedure, map[string]any{"userId": "alice"})

	alice := s.mustCall(t, "alice", service.GetUserProcedure, map[string]any{})
	assert.Equal(t, []any{"bob"}, alice["friends"])
	assert.Empty(t, alice["outgoingFriendRequests"])
}
