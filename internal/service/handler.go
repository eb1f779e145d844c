package service

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// LedgerServiceName is the fully-qualified name of the service.
const LedgerServiceName = "splitledger.v1.LedgerService"

// Procedure paths. Requests and responses are google.protobuf.Struct
// messages; the fields each procedure reads are listed on its method.
const (
	GetUserProcedure              = "/" + LedgerServiceName + "/GetUser"
	GetGroupProcedure             = "/" + LedgerServiceName + "/GetGroup"
	GetTransactionProcedure       = "/" + LedgerServiceName + "/GetTransaction"
	GetRelationProcedure          = "/" + LedgerServiceName + "/GetRelation"
	CreateGroupProcedure          = "/" + LedgerServiceName + "/CreateGroup"
	RecordTransactionProcedure    = "/" + LedgerServiceName + "/RecordTransaction"
	DeleteTransactionProcedure    = "/" + LedgerServiceName + "/DeleteTransaction"
	DeleteGroupProcedure          = "/" + LedgerServiceName + "/DeleteGroup"
	InviteToGroupProcedure        = "/" + LedgerServiceName + "/InviteToGroup"
	JoinGroupProcedure            = "/" + LedgerServiceName + "/JoinGroup"
	RegenerateInviteCodeProcedure = "/" + LedgerServiceName + "/RegenerateInviteCode"
	SendFriendRequestProcedure    = "/" + LedgerServiceName + "/SendFriendRequest"
	AcceptFriendRequestProcedure  = "/" + LedgerServiceName + "/AcceptFriendRequest"
)

type unaryFunc func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

func (s *LedgerService) procedures() map[string]unaryFunc {
	return map[string]unaryFunc{
		GetUserProcedure:              s.GetUser,
		GetGroupProcedure:             s.GetGroup,
		GetTransactionProcedure:       s.GetTransaction,
		GetRelationProcedure:          s.GetRelation,
		CreateGroupProcedure:          s.CreateGroup,
		RecordTransactionProcedure:    s.RecordTransaction,
		DeleteTransactionProcedure:    s.DeleteTransaction,
		DeleteGroupProcedure:          s.DeleteGroup,
		InviteToGroupProcedure:        s.InviteToGroup,
		JoinGroupProcedure:            s.JoinGroup,
		RegenerateInviteCodeProcedure: s.RegenerateInviteCode,
		SendFriendRequestProcedure:    s.SendFriendRequest,
		AcceptFriendRequestProcedure:  s.AcceptFriendRequest,
	}
}

// NewLedgerServiceHandler returns the path prefix to mount and the handler
// serving every procedure of svc.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	for procedure, fn := range svc.procedures() {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}
	return "/" + LedgerServiceName + "/", mux
}

// LedgerServiceClient calls a LedgerService over HTTP.
type LedgerServiceClient struct {
	clients map[string]*connect.Client[structpb.Struct, structpb.Struct]
}

// NewLedgerServiceClient returns a client for the server at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	c := &LedgerServiceClient{clients: make(map[string]*connect.Client[structpb.Struct, structpb.Struct])}
	for procedure := range (&LedgerService{}).procedures() {
		c.clients[procedure] = connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	return c
}

// Call invokes procedure with req.
func (c *LedgerServiceClient) Call(ctx context.Context, procedure string, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	client, ok := c.clients[procedure]
	if !ok {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("unknown procedure %s", procedure))
	}
	return client.CallUnary(ctx, req)
}
