package transaction

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/shares"
)

// Epsilon is the slack allowed when comparing a withdrawal to the redeemable value
var Epsilon = decimal.New(1, -9)

// Deposit adds capital for an existing member at the current share price.
// Logic:
//   - sharesChange = amount / sharePrice
//   - member: shares += sharesChange, initialInvestment += amount
//   - pool: currentValue += amount, totalShares += sharesChange
func Deposit(pool *domain.PoolRecord, memberID uuid.UUID, amount decimal.Decimal) (*domain.PoolRecord, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Validationf("deposit amount must be positive")
	}

	idx := pool.FindMember(memberID)
	if idx < 0 {
		return nil, domain.NotFoundf("member %s not found", memberID)
	}

	price := shares.SharePrice(pool)
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, domain.InvalidStatef("share price %s is not positive", price.String())
	}
	sharesChange := amount.Div(price)

	next := pool.Clone()
	member := &next.Members[idx]
	member.Shares = member.Shares.Add(sharesChange)
	member.InitialInvestment = member.InitialInvestment.Add(amount)

	next.CurrentValue = next.CurrentValue.Add(amount)
	next.TotalShares = next.TotalShares.Add(sharesChange)

	return next, nil
}

// Withdraw redeems capital for a member at the current share price.
// The cost basis shrinks in proportion to the fraction of shares redeemed.
// Fails with ErrInsufficientFunds when amount exceeds the member's current value.
func Withdraw(pool *domain.PoolRecord, memberID uuid.UUID, amount decimal.Decimal) (*domain.PoolRecord, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Validationf("withdrawal amount must be positive")
	}

	idx := pool.FindMember(memberID)
	if idx < 0 {
		return nil, domain.NotFoundf("member %s not found", memberID)
	}

	stats := shares.Stats(&pool.Members[idx], pool)
	if amount.GreaterThan(stats.CurrentValue.Add(Epsilon)) {
		return nil, &domain.InsufficientFundsError{
			MemberID:  memberID.String(),
			Requested: amount,
			Available: stats.CurrentValue,
		}
	}

	price := shares.SharePrice(pool)
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, domain.InvalidStatef("share price %s is not positive", price.String())
	}
	sharesChange := amount.Div(price)

	next := pool.Clone()
	member := &next.Members[idx]

	oldShares := member.Shares
	newShares := decimal.Max(decimal.Zero, oldShares.Sub(sharesChange))

	// basis * newShares / oldShares keeps the scale within DivisionPrecision
	if oldShares.GreaterThan(decimal.Zero) {
		member.InitialInvestment = decimal.Max(decimal.Zero,
			member.InitialInvestment.Mul(newShares).Div(oldShares))
	}
	member.Shares = newShares

	next.CurrentValue = decimal.Max(decimal.Zero, next.CurrentValue.Sub(amount))
	next.TotalShares = next.SumShares()

	return next, nil
}
