package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "investpool.v1.PoolService"

// Member is a member with its derived statistics. Decimals travel as strings.
type Member struct {
	Id                 string `json:"id"`
	Name               string `json:"name"`
	Shares             string `json:"shares"`
	InitialInvestment  string `json:"initial_investment"`
	JoinReferenceValue string `json:"join_reference_value,omitempty"`
	CurrentValue       string `json:"current_value"`
	Profit             string `json:"profit"`
	ProfitPercent      string `json:"profit_percent,omitempty"` // Empty when nothing was invested
	OwnershipPercent   string `json:"ownership_percent"`
}

// PoolSnapshot is the read-only view of the pool
type PoolSnapshot struct {
	Members       []*Member              `json:"members"`
	TotalShares   string                 `json:"total_shares"`
	CurrentValue  string                 `json:"current_value"`
	SharePrice    string                 `json:"share_price"`
	TotalInvested string                 `json:"total_invested"`
	TotalProfit   string                 `json:"total_profit"`
	ProfitPercent string                 `json:"profit_percent,omitempty"`
	Version       uint64                 `json:"version"`
	UpdatedAt     *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

type GetSnapshotRequest struct{}

type AddMemberRequest struct {
	Name           string `json:"name"`
	Investment     string `json:"investment"`
	ReferenceValue string `json:"reference_value,omitempty"`
}

type RemoveMemberRequest struct {
	MemberId string `json:"member_id"`
}

type DepositRequest struct {
	MemberId string `json:"member_id"`
	Amount   string `json:"amount"`
}

type WithdrawRequest struct {
	MemberId string `json:"member_id"`
	Amount   string `json:"amount"`
}

type RefreshRequest struct{}

type QuoteSharesRequest struct {
	Investment     string `json:"investment"`
	ReferenceValue string `json:"reference_value,omitempty"`
}

type SnapshotResponse struct {
	Snapshot *PoolSnapshot `json:"snapshot"`
}

type AddMemberResponse struct {
	Snapshot *PoolSnapshot `json:"snapshot"`
	Member   *Member       `json:"member"`
}

type QuoteSharesResponse struct {
	IssuancePrice string `json:"issuance_price"`
	Shares        string `json:"shares"`
}

// PoolServiceServer is the server API for PoolService
type PoolServiceServer interface {
	GetSnapshot(context.Context, *GetSnapshotRequest) (*SnapshotResponse, error)
	AddMember(context.Context, *AddMemberRequest) (*AddMemberResponse, error)
	RemoveMember(context.Context, *RemoveMemberRequest) (*SnapshotResponse, error)
	Deposit(context.Context, *DepositRequest) (*SnapshotResponse, error)
	Withdraw(context.Context, *WithdrawRequest) (*SnapshotResponse, error)
	Refresh(context.Context, *RefreshRequest) (*SnapshotResponse, error)
	QuoteShares(context.Context, *QuoteSharesRequest) (*QuoteSharesResponse, error)
}

// RegisterPoolServiceServer registers srv on s
func RegisterPoolServiceServer(s grpc.ServiceRegistrar, srv PoolServiceServer) {
	s.RegisterService(&poolServiceDesc, srv)
}

var poolServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PoolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: unaryHandler("GetSnapshot", PoolServiceServer.GetSnapshot)},
		{MethodName: "AddMember", Handler: unaryHandler("AddMember", PoolServiceServer.AddMember)},
		{MethodName: "RemoveMember", Handler: unaryHandler("RemoveMember", PoolServiceServer.RemoveMember)},
		{MethodName: "Deposit", Handler: unaryHandler("Deposit", PoolServiceServer.Deposit)},
		{MethodName: "Withdraw", Handler: unaryHandler("Withdraw", PoolServiceServer.Withdraw)},
		{MethodName: "Refresh", Handler: unaryHandler("Refresh", PoolServiceServer.Refresh)},
		{MethodName: "QuoteShares", Handler: unaryHandler("QuoteShares", PoolServiceServer.QuoteShares)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "investpool/v1/pool.proto",
}

// unaryHandler adapts a typed service method to grpc's method handler signature
func unaryHandler[Req, Resp any](
	method string,
	call func(PoolServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PoolServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PoolServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PoolServiceClient is a typed client for PoolService
type PoolServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPoolServiceClient creates a client on cc. Calls use the JSON codec.
func NewPoolServiceClient(cc grpc.ClientConnInterface) *PoolServiceClient {
	return &PoolServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PoolServiceClient) GetSnapshot(ctx context.Context, in *GetSnapshotRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	return invoke[SnapshotResponse](ctx, c.cc, "GetSnapshot", in, opts)
}

func (c *PoolServiceClient) AddMember(ctx context.Context, in *AddMemberRequest, opts ...grpc.CallOption) (*AddMemberResponse, error) {
	return invoke[AddMemberResponse](ctx, c.cc, "AddMember", in, opts)
}

func (c *PoolServiceClient) RemoveMember(ctx context.Context, in *RemoveMemberRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	return invoke[SnapshotResponse](ctx, c.cc, "RemoveMember", in, opts)
}

func (c *PoolServiceClient) Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	return invoke[SnapshotResponse](ctx, c.cc, "Deposit", in, opts)
}

func (c *PoolServiceClient) Withdraw(ctx context.Context, in *WithdrawRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	return invoke[SnapshotResponse](ctx, c.cc, "Withdraw", in, opts)
}

func (c *PoolServiceClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*SnapshotResponse, error) {
	return invoke[SnapshotResponse](ctx, c.cc, "Refresh", in, opts)
}

func (c *PoolServiceClient) QuoteShares(ctx context.Context, in *QuoteSharesRequest, opts ...grpc.CallOption) (*QuoteSharesResponse, error) {
	return invoke[QuoteSharesResponse](ctx, c.cc, "QuoteShares", in, opts)
}
