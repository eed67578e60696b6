package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/membership"
	"github.com/simaogato/investpool-backend/internal/usecase/shares"
)

type addMemberRequest struct {
	Name           string      `json:"name" validate:"required,max=100"`
	Investment     json.Number `json:"investment" validate:"required"`
	ReferenceValue json.Number `json:"referenceValue"`
}

type amountRequest struct {
	Amount json.Number `json:"amount" validate:"required"`
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type memberJSON struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Shares             string  `json:"shares"`
	InitialInvestment  string  `json:"initialInvestment"`
	JoinReferenceValue *string `json:"joinReferenceValue,omitempty"`
	CurrentValue       string  `json:"currentValue"`
	Profit             string  `json:"profit"`
	ProfitPercent      *string `json:"profitPercent"`
	OwnershipPercent   string  `json:"ownershipPercent"`
}

type poolJSON struct {
	Members       []memberJSON `json:"members"`
	MemberCount   int          `json:"memberCount"`
	TotalShares   string       `json:"totalShares"`
	CurrentValue  string       `json:"currentValue"`
	SharePrice    string       `json:"sharePrice"`
	TotalInvested string       `json:"totalInvested"`
	TotalProfit   string       `json:"totalProfit"`
	ProfitPercent *string      `json:"profitPercent"`
	Version       uint64       `json:"version"`
	UpdatedAt     *time.Time   `json:"updatedAt,omitempty"`
}

type addMemberJSON struct {
	Pool   poolJSON   `json:"pool"`
	Member memberJSON `json:"member"`
}

type quoteJSON struct {
	IssuancePrice string `json:"issuancePrice"`
	Shares        string `json:"shares"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "investpool",
	})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	view, err := s.accountant.Snapshot(r.Context())
	s.respondView(w, view, err)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if !s.decode(w, r, &req) {
		return
	}

	investment, err := domain.ParseAmount("investment", req.Investment.String())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	referenceValue, err := domain.ParseOptionalAmount("referenceValue", req.ReferenceValue.String())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	view, member, err := s.accountant.AddMember(r.Context(), membership.AddMemberInput{
		Name:           req.Name,
		Investment:     investment,
		ReferenceValue: referenceValue,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := addMemberJSON{Pool: toPoolJSON(view)}
	for _, m := range resp.Pool.Members {
		if m.ID == member.ID.String() {
			resp.Member = m
		}
	}
	s.writeJSON(w, http.StatusCreated, envelope{Success: true, Data: resp})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := s.memberID(w, r)
	if !ok {
		return
	}
	view, err := s.accountant.RemoveMember(r.Context(), memberID)
	s.respondView(w, view, err)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleAmount(w, r, s.accountant.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleAmount(w, r, s.accountant.Withdraw)
}

func (s *Server) handleAmount(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, memberID uuid.UUID, amount decimal.Decimal) (*shares.PoolView, error),
) {
	memberID, ok := s.memberID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := domain.ParseAmount("amount", req.Amount.String())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	view, err := apply(r.Context(), memberID, amount)
	s.respondView(w, view, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	view, err := s.accountant.Refresh(r.Context())
	s.respondView(w, view, err)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	investment, err := domain.ParseAmount("investment", q.Get("investment"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	referenceValue, err := domain.ParseOptionalAmount("referenceValue", q.Get("referenceValue"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	quote, err := s.accountant.QuoteShares(r.Context(), investment, referenceValue)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: quoteJSON{
		IssuancePrice: shares.RoundHalfUp(quote.IssuancePrice, shares.PricePlaces).String(),
		Shares:        quote.Shares.String(),
	}})
}

func (s *Server) memberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid member id")
		return uuid.Nil, false
	}
	return id, true
}

// decode reads and validates a JSON body, writing a 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) respondView(w http.ResponseWriter, view *shares.PoolView, err error) {
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: toPoolJSON(view)})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, envelope{Success: false, Error: message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUpstream):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeError(w, status, err.Error())
}

func toPoolJSON(view *shares.PoolView) poolJSON {
	out := poolJSON{
		Members:       make([]memberJSON, 0, len(view.Members)),
		MemberCount:   view.Summary.MemberCount,
		TotalShares:   view.Record.TotalShares.String(),
		CurrentValue:  view.Record.CurrentValue.String(),
		SharePrice:    view.Summary.SharePrice.String(),
		TotalInvested: view.Summary.TotalInvested.String(),
		TotalProfit:   view.Summary.TotalProfit.String(),
		ProfitPercent: nullString(view.Summary.ProfitPercent),
		Version:       uint64(view.Record.Version),
	}
	if !view.Record.UpdatedAt.IsZero() {
		updated := view.Record.UpdatedAt
		out.UpdatedAt = &updated
	}

	for _, mv := range view.Members {
		out.Members = append(out.Members, memberJSON{
			ID:                 mv.Member.ID.String(),
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
	return out
}

func nullString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
