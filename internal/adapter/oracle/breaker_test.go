package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/investpool-backend/internal/domain"
)

// MockPriceOracle is a mock implementation of PriceOracle
type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) CurrentPoolValue(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	inner := new(MockPriceOracle)
	inner.On("CurrentPoolValue", ctx).Return(decimal.Zero, errors.New("timeout")).Times(3)

	now := time.Unix(1_700_000_000, 0)
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute}, zerolog.Nop())
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := b.CurrentPoolValue(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, b.State())

	_, err := b.CurrentPoolValue(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	inner.AssertNumberOfCalls(t, "CurrentPoolValue", 3)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	ctx := context.Background()
	inner := new(MockPriceOracle)
	inner.On("CurrentPoolValue", ctx).Return(decimal.Zero, errors.New("502")).Once()
	inner.On("CurrentPoolValue", ctx).Return(decimal.NewFromInt(1000), nil)

	now := time.Unix(1_700_000_000, 0)
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 30 * time.Second}, zerolog.Nop())
	b.now = func() time.Time { return now }

	_, err := b.CurrentPoolValue(ctx)
	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(31 * time.Second)
	value, err := b.CurrentPoolValue(ctx)
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, StateHalfOpen, b.State())

	_, err = b.CurrentPoolValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	inner := new(MockPriceOracle)
	inner.On("CurrentPoolValue", ctx).Return(decimal.Zero, errors.New("502"))

	now := time.Unix(1_700_000_000, 0)
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second}, zerolog.Nop())
	b.now = func() time.Time { return now }

	_, _ = b.CurrentPoolValue(ctx)
	now = now.Add(2 * time.Second)
	_, _ = b.CurrentPoolValue(ctx)

	assert.Equal(t, StateOpen, b.State())
	_, err := b.CurrentPoolValue(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_CanceledCallerDoesNotCount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inner := new(MockPriceOracle)
	inner.On("CurrentPoolValue", ctx).Return(decimal.Zero, context.Canceled)

	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 1}, zerolog.Nop())
	_, _ = b.CurrentPoolValue(ctx)

	assert.Equal(t, StateClosed, b.State())
}
