package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member represents a member of the pool in the domain layer
type Member struct {
	ID                uuid.UUID
	Name              string
	Shares            decimal.Decimal // Units of proportional ownership
	InitialInvestment decimal.Decimal // Cumulative net capital contributed (cost basis)

	// JoinReferenceValue is the pool's total value at the moment of joining.
	// Only used to price issuance; absent when the member bought in at the current price.
	JoinReferenceValue decimal.NullDecimal
}

// Validate ensures the member adheres to domain rules
func (m *Member) Validate() error {
	if m.ID == uuid.Nil {
		return errors.New("member id cannot be empty")
	}
	if m.Name == "" {
		return errors.New("member name cannot be empty")
	}
	if m.Shares.IsNegative() {
		return errors.New("member shares cannot be negative")
	}
	if m.InitialInvestment.IsNegative() {
		return errors.New("member initial investment cannot be negative")
	}
	return nil
}
