package shares

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/investpool-backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSharePrice(t *testing.T) {
	tests := []struct {
		name         string
		totalShares  string
		currentValue string
		want         string
	}{
		{"Empty pool prices at one", "0", "0", "1"},
		{"Empty pool with stray value still prices at one", "0", "250", "1"},
		{"Negative shares price at one", "-10", "100", "1"},
		{"Regular NAV", "50", "500", "10"},
		{"Pool lost value", "100", "80", "0.8"},
		{"Zero value pool", "100", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := &domain.PoolRecord{TotalShares: dec(tt.totalShares), CurrentValue: dec(tt.currentValue)}
			got := SharePrice(pool)
			assert.True(t, got.Equal(dec(tt.want)), "SharePrice = %s, want %s", got, tt.want)
		})
	}
}

func TestSharePrice_IsDeterministic(t *testing.T) {
	pool := &domain.PoolRecord{TotalShares: dec("3"), CurrentValue: dec("10")}

	first := SharePrice(pool)
	for i := 0; i < 10; i++ {
		assert.True(t, first.Equal(SharePrice(pool)))
	}
	// Inputs untouched
	assert.True(t, pool.TotalShares.Equal(dec("3")))
	assert.True(t, pool.CurrentValue.Equal(dec("10")))
}

func TestStats_ProfitScenario(t *testing.T) {
	alice := domain.Member{ID: uuid.New(), Name: "Alice", Shares: dec("60"), InitialInvestment: dec("600")}
	bob := domain.Member{ID: uuid.New(), Name: "Bob", Shares: dec("40"), InitialInvestment: dec("400")}
	pool := &domain.PoolRecord{
		Members:      []domain.Member{alice, bob},
		TotalShares:  dec("100"),
		CurrentValue: dec("1200"),
	}

	stats := Stats(&alice, pool)

	assert.True(t, stats.SharePrice.Equal(dec("12")))
	assert.True(t, stats.CurrentValue.Equal(dec("720")))
	assert.True(t, stats.Profit.Equal(dec("120")))
	require.True(t, stats.ProfitPercent.Valid)
	assert.True(t, stats.ProfitPercent.Decimal.Equal(dec("20")))
	assert.True(t, stats.OwnershipPercent.Equal(dec("60")))
}

func TestStats_ZeroInvestmentHasNoProfitPercent(t *testing.T) {
	gifted := domain.Member{ID: uuid.New(), Name: "Gifted", Shares: dec("10"), InitialInvestment: decimal.Zero}
	pool := &domain.PoolRecord{
		Members:      []domain.Member{gifted},
		TotalShares:  dec("10"),
		CurrentValue: dec("100"),
	}

	stats := Stats(&gifted, pool)

	assert.False(t, stats.ProfitPercent.Valid, "profit percent must be absent, not zero")
	assert.True(t, stats.Profit.Equal(dec("100")))
}

func TestStats_EmptyPool(t *testing.T) {
	ghost := domain.Member{ID: uuid.New(), Name: "Ghost"}
	pool := domain.NewEmptyPool()

	stats := Stats(&ghost, pool)

	assert.True(t, stats.SharePrice.Equal(dec("1")))
	assert.True(t, stats.CurrentValue.IsZero())
	assert.True(t, stats.OwnershipPercent.IsZero())
}

func TestStats_Rounding(t *testing.T) {
	// price = 100 / 3 = 33.3333...
	m := domain.Member{ID: uuid.New(), Name: "Third", Shares: dec("1"), InitialInvestment: dec("30")}
	other := domain.Member{ID: uuid.New(), Name: "Rest", Shares: dec("2"), InitialInvestment: dec("60")}
	pool := &domain.PoolRecord{
		Members:      []domain.Member{m, other},
		TotalShares:  dec("3"),
		CurrentValue: dec("100"),
	}

	stats := Stats(&m, pool)

	assert.True(t, stats.SharePrice.Equal(dec("33.3333")), "price %s", stats.SharePrice)
	assert.True(t, stats.CurrentValue.Equal(dec("33.33")), "value %s", stats.CurrentValue)
	assert.True(t, stats.Profit.Equal(dec("3.33")), "profit %s", stats.Profit)
	assert.True(t, stats.OwnershipPercent.Equal(dec("33.33")), "ownership %s", stats.OwnershipPercent)
	assert.True(t, stats.ProfitPercent.Decimal.Equal(dec("11.11")), "profit %% %s", stats.ProfitPercent.Decimal)
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		want   string
	}{
		{"2.345", 2, "2.35"},
		{"2.344", 2, "2.34"},
		{"-2.345", 2, "-2.34"},
		{"-2.346", 2, "-2.35"},
		{"2.5", 0, "3"},
		{"-2.5", 0, "-2"},
		{"10.00005", 4, "10.0001"},
		{"7", 2, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundHalfUp(dec(tt.in), tt.places)
			assert.True(t, got.Equal(dec(tt.want)), "RoundHalfUp(%s, %d) = %s, want %s", tt.in, tt.places, got, tt.want)
		})
	}
}

func TestSummary(t *testing.T) {
	pool := &domain.PoolRecord{
		Members: []domain.Member{
			{ID: uuid.New(), Name: "A", Shares: dec("60"), InitialInvestment: dec("600")},
			{ID: uuid.New(), Name: "B", Shares: dec("40"), InitialInvestment: dec("400")},
		},
		TotalShares:  dec("100"),
		CurrentValue: dec("900"),
	}

	summary := Summary(pool)

	assert.Equal(t, 2, summary.MemberCount)
	assert.True(t, summary.TotalInvested.Equal(dec("1000")))
	assert.True(t, summary.TotalProfit.Equal(dec("-100")))
	require.True(t, summary.ProfitPercent.Valid)
	assert.True(t, summary.ProfitPercent.Decimal.Equal(dec("-10")))
	assert.True(t, summary.SharePrice.Equal(dec("9")))

	empty := Summary(domain.NewEmptyPool())
	assert.False(t, empty.ProfitPercent.Valid)
	assert.True(t, empty.SharePrice.Equal(dec("1")))
}

func TestView(t *testing.T) {
	a := domain.Member{ID: uuid.New(), Name: "A", Shares: dec("10"), InitialInvestment: dec("100")}
	pool := &domain.PoolRecord{Members: []domain.Member{a}, TotalShares: dec("10"), CurrentValue: dec("150")}

	view := View(pool)

	require.Len(t, view.Members, 1)
	assert.Equal(t, a.ID, view.Members[0].Member.ID)
	assert.True(t, view.Members[0].Stats.CurrentValue.Equal(dec("150")))
	assert.Same(t, pool, view.Record)
	assert.True(t, view.Summary.TotalProfit.Equal(dec("50")))
}
