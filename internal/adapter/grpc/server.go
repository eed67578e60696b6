package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/accountant"
	"github.com/simaogato/investpool-backend/internal/usecase/membership"
	"github.com/simaogato/investpool-backend/internal/usecase/shares"
)

// Server implements the PoolService gRPC server
type Server struct {
	AccountantService *accountant.AccountantService
}

var _ PoolServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(accountantService *accountant.AccountantService) *Server {
	return &Server{
		AccountantService: accountantService,
	}
}

// GetSnapshot handles the GetSnapshot RPC
func (s *Server) GetSnapshot(ctx context.Context, req *GetSnapshotRequest) (*SnapshotResponse, error) {
	view, err := s.AccountantService.Snapshot(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &SnapshotResponse{Snapshot: viewToProto(view)}, nil
}

// AddMember handles the AddMember RPC
func (s *Server) AddMember(ctx context.Context, req *AddMemberRequest) (*AddMemberResponse, error) {
	investment, err := domain.ParseAmount("investment", req.Investment)
	if err != nil {
		return nil, mapError(err)
	}
	referenceValue, err := domain.ParseOptionalAmount("reference_value", req.ReferenceValue)
	if err != nil {
		return nil, mapError(err)
	}

	view, member, err := s.AccountantService.AddMember(ctx, membership.AddMemberInput{
		Name:           req.Name,
		Investment:     investment,
		ReferenceValue: referenceValue,
	})
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AddMemberResponse{Snapshot: viewToProto(view)}
	for _, m := range resp.Snapshot.Members {
		if m.Id == member.ID.String() {
			resp.Member = m
		}
	}
	return resp, nil
}

// RemoveMember handles the RemoveMember RPC
func (s *Server) RemoveMember(ctx context.Context, req *RemoveMemberRequest) (*SnapshotResponse, error) {
	memberID, err := parseMemberID(req.MemberId)
	if err != nil {
		return nil, err
	}

	view, err := s.AccountantService.RemoveMember(ctx, memberID)
	if err != nil {
		return nil, mapError(err)
	}
	return &SnapshotResponse{Snapshot: viewToProto(view)}, nil
}

// Deposit handles the Deposit RPC
func (s *Server) Deposit(ctx context.Context, req *DepositRequest) (*SnapshotResponse, error) {
	memberID, err := parseMemberID(req.MemberId)
	if err != nil {
		return nil, err
	}
	amount, err := domain.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, mapError(err)
	}

	view, err := s.AccountantService.Deposit(ctx, memberID, amount)
	if err != nil {
		return nil, mapError(err)
	}
	return &SnapshotResponse{Snapshot: viewToProto(view)}, nil
}

// Withdraw handles the Withdraw RPC
func (s *Server) Withdraw(ctx context.Context, req *WithdrawRequest) (*SnapshotResponse, error) {
	memberID, err := parseMemberID(req.MemberId)
	if err != nil {
		return nil, err
	}
	amount, err := domain.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, mapError(err)
	}

	view, err := s.AccountantService.Withdraw(ctx, memberID, amount)
	if err != nil {
		return nil, mapError(err)
	}
	return &SnapshotResponse{Snapshot: viewToProto(view)}, nil
}

// Refresh handles the Refresh RPC
func (s *Server) Refresh(ctx context.Context, req *RefreshRequest) (*SnapshotResponse, error) {
	view, err := s.AccountantService.Refresh(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &SnapshotResponse{Snapshot: viewToProto(view)}, nil
}

// QuoteShares handles the QuoteShares RPC
func (s *Server) QuoteShares(ctx context.Context, req *QuoteSharesRequest) (*QuoteSharesResponse, error) {
	investment, err := domain.ParseAmount("investment", req.Investment)
	if err != nil {
		return nil, mapError(err)
	}
	referenceValue, err := domain.ParseOptionalAmount("reference_value", req.ReferenceValue)
	if err != nil {
		return nil, mapError(err)
	}

	quote, err := s.AccountantService.QuoteShares(ctx, investment, referenceValue)
	if err != nil {
		return nil, mapError(err)
	}
	return &QuoteSharesResponse{
		IssuancePrice: shares.RoundHalfUp(quote.IssuancePrice, shares.PricePlaces).String(),
		Shares:        quote.Shares.String(),
	}, nil
}

func parseMemberID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid member_id format: %v", err)
	}
	return id, nil
}

// viewToProto converts a pool view to its wire form
func viewToProto(view *shares.PoolView) *PoolSnapshot {
	snap := &PoolSnapshot{
		Members:       make([]*Member, 0, len(view.Members)),
		TotalShares:   view.Record.TotalShares.String(),
		CurrentValue:  view.Record.CurrentValue.String(),
		SharePrice:    view.Summary.SharePrice.String(),
		TotalInvested: view.Summary.TotalInvested.String(),
		TotalProfit:   view.Summary.TotalProfit.String(),
		ProfitPercent: nullString(view.Summary.ProfitPercent),
		Version:       uint64(view.Record.Version),
	}
	if !view.Record.UpdatedAt.IsZero() {
		snap.UpdatedAt = timestamppb.New(view.Record.UpdatedAt)
	}

	for _, mv := range view.Members {
		snap.Members = append(snap.Members, &Member{
			Id:                 mv.Member.ID.String(),
			Name:               mv.Member.Name,
			Shares:             mv.Member.Shares.String(),
			InitialInvestment:  mv.Member.InitialInvestment.String(),
			JoinReferenceValue: nullString(mv.Member.JoinReferenceValue),
			CurrentValue:       mv.Stats.CurrentValue.String(),
			Profit:             mv.Stats.Profit.String(),
			ProfitPercent:      nullString(mv.Stats.ProfitPercent),
			OwnershipPercent:   mv.Stats.OwnershipPercent.String(),
		})
	}
	return snap
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	errorMsg := err.Error()

	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	case errors.Is(err, domain.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s", errorMsg)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Errorf(codes.FailedPrecondition, "%s", errorMsg)
	case errors.Is(err, domain.ErrConflict):
		return status.Errorf(codes.Aborted, "%s", errorMsg)
	case errors.Is(err, domain.ErrUpstream):
		return status.Errorf(codes.Unavailable, "%s", errorMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	}

	// Default to Internal error for unknown errors, including ErrInvalidState
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
