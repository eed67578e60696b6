package shares

import (
	"github.com/shopspring/decimal"
	"github.com/simaogato/investpool-backend/internal/domain"
)

const (
	// MoneyPlaces is the rounding precision for currency and percent outputs
	MoneyPlaces = 2
	// PricePlaces is the rounding precision for share prices
	PricePlaces = 4
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// MemberStats are the derived values of a member's holding at the current share price
type MemberStats struct {
	CurrentValue     decimal.Decimal
	Profit           decimal.Decimal
	ProfitPercent    decimal.NullDecimal // Absent when nothing was invested
	OwnershipPercent decimal.Decimal
	SharePrice       decimal.Decimal
}

// PoolSummary aggregates the pool the way the dashboard presents it
type PoolSummary struct {
	MemberCount   int
	TotalInvested decimal.Decimal
	TotalProfit   decimal.Decimal
	ProfitPercent decimal.NullDecimal
	SharePrice    decimal.Decimal
}

// SharePrice computes the value of one share (NAV).
// An empty pool (totalShares <= 0) prices at 1 so the first issuance is well formed.
func SharePrice(pool *domain.PoolRecord) decimal.Decimal {
	if pool == nil || pool.TotalShares.LessThanOrEqual(decimal.Zero) {
		return one
	}
	return pool.CurrentValue.Div(pool.TotalShares)
}

// Stats derives a member's current value, profit and ownership.
// Logic:
//   - currentValue = shares * sharePrice
//   - profit = currentValue - initialInvestment
//   - profitPercent = profit / initialInvestment * 100, absent if initialInvestment <= 0
//   - ownershipPercent = shares / totalShares * 100, 0 for an empty pool
//
// Currency and percent are rounded half-up to 2 places, the price to 4.
func Stats(member *domain.Member, pool *domain.PoolRecord) MemberStats {
	price := SharePrice(pool)

	currentValue := member.Shares.Mul(price)
	profit := currentValue.Sub(member.InitialInvestment)

	var profitPercent decimal.NullDecimal
	if member.InitialInvestment.GreaterThan(decimal.Zero) {
		pct := profit.Div(member.InitialInvestment).Mul(hundred)
		profitPercent = decimal.NewNullDecimal(RoundHalfUp(pct, MoneyPlaces))
	}

	ownership := decimal.Zero
	if pool.TotalShares.GreaterThan(decimal.Zero) {
		ownership = member.Shares.Div(pool.TotalShares).Mul(hundred)
	}

	return MemberStats{
		CurrentValue:     RoundHalfUp(currentValue, MoneyPlaces),
		Profit:           RoundHalfUp(profit, MoneyPlaces),
		ProfitPercent:    profitPercent,
		OwnershipPercent: RoundHalfUp(ownership, MoneyPlaces),
		SharePrice:       RoundHalfUp(price, PricePlaces),
	}
}

// Summary aggregates invested capital and profit across all members
func Summary(pool *domain.PoolRecord) PoolSummary {
	invested := decimal.Zero
	for _, m := range pool.Members {
		invested = invested.Add(m.InitialInvestment)
	}
	profit := pool.CurrentValue.Sub(invested)

	var profitPercent decimal.NullDecimal
	if invested.GreaterThan(decimal.Zero) {
		profitPercent = decimal.NewNullDecimal(RoundHalfUp(profit.Div(invested).Mul(hundred), MoneyPlaces))
	}

	return PoolSummary{
		MemberCount:   len(pool.Members),
		TotalInvested: RoundHalfUp(invested, MoneyPlaces),
		TotalProfit:   RoundHalfUp(profit, MoneyPlaces),
		ProfitPercent: profitPercent,
		SharePrice:    RoundHalfUp(SharePrice(pool), PricePlaces),
	}
}

// RoundHalfUp rounds to places, ties toward positive infinity (-2.5 -> -2, 2.5 -> 3).
// decimal.Round rounds ties away from zero, which differs for negative values.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(half).Floor().Shift(-places)
}
