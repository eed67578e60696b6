package membership

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/shares"
)

var one = decimal.NewFromInt(1)

// AddMemberInput represents the input for admitting a new member
type AddMemberInput struct {
	Name       string
	Investment decimal.Decimal

	// ReferenceValue is the pool's total value at the time the member joined,
	// used to price a backdated contribution. Absent means "price at now".
	ReferenceValue decimal.NullDecimal
}

// IDGenerator produces fresh member ids
type IDGenerator func() uuid.UUID

// IssuancePrice resolves the share price used to convert a new member's capital into shares.
// Resolution order:
//  1. Empty pool (totalShares <= 0): 1
//  2. ReferenceValue > 0: referenceValue / totalShares
//  3. ReferenceValue == 0: 1 (a stated zero history means "no pool value yet")
//  4. Otherwise the current share price
//  5. Anything still <= 0 falls back to 1
func IssuancePrice(pool *domain.PoolRecord, referenceValue decimal.NullDecimal) decimal.Decimal {
	if pool.TotalShares.LessThanOrEqual(decimal.Zero) {
		return one
	}

	var price decimal.Decimal
	switch {
	case referenceValue.Valid && referenceValue.Decimal.GreaterThan(decimal.Zero):
		price = referenceValue.Decimal.Div(pool.TotalShares)
		if price.LessThanOrEqual(decimal.Zero) {
			price = shares.SharePrice(pool)
		}
	case referenceValue.Valid && referenceValue.Decimal.IsZero():
		price = one
	default:
		price = shares.SharePrice(pool)
	}

	if price.LessThanOrEqual(decimal.Zero) {
		return one
	}
	return price
}

// AddMember admits a new member and issues shares for their investment.
// The input pool is not modified; the new pool and the new member are returned.
func AddMember(pool *domain.PoolRecord, input AddMemberInput, newID IDGenerator) (*domain.PoolRecord, *domain.Member, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, domain.Validationf("member name cannot be empty")
	}
	if input.Investment.LessThanOrEqual(decimal.Zero) {
		return nil, nil, domain.Validationf("investment must be positive")
	}
	if newID == nil {
		newID = uuid.New
	}

	price := IssuancePrice(pool, input.ReferenceValue)
	issued := input.Investment.Div(price)

	member := domain.Member{
		ID:                newID(),
		Name:              name,
		Shares:            issued,
		InitialInvestment: input.Investment,
	}
	// A negative reference value is ignored for pricing and not recorded
	if input.ReferenceValue.Valid && !input.ReferenceValue.Decimal.IsNegative() {
		member.JoinReferenceValue = input.ReferenceValue
	}

	next := pool.Clone()
	next.Members = append(next.Members, member)
	next.CurrentValue = next.CurrentValue.Add(input.Investment)
	next.TotalShares = next.TotalShares.Add(issued)

	return next, &member, nil
}

// RemoveMember erases a member and takes their current value out of the pool.
// totalShares is recomputed from the remaining members rather than subtracted.
func RemoveMember(pool *domain.PoolRecord, memberID uuid.UUID) (*domain.PoolRecord, error) {
	idx := pool.FindMember(memberID)
	if idx < 0 {
		return nil, domain.NotFoundf("member %s not found", memberID)
	}

	stats := shares.Stats(&pool.Members[idx], pool)

	next := pool.Clone()
	next.Members = append(next.Members[:idx], next.Members[idx+1:]...)
	next.CurrentValue = decimal.Max(decimal.Zero, pool.CurrentValue.Sub(stats.CurrentValue))
	next.TotalShares = next.SumShares()

	return next, nil
}
