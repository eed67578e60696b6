package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/shares"
)

type stubRefresher struct {
	calls    atomic.Int32
	err      error
	deadline bool
}

func (s *stubRefresher) Refresh(ctx context.Context) (*shares.PoolView, error) {
	s.calls.Add(1)
	_, s.deadline = ctx.Deadline()
	if s.err != nil {
		return nil, s.err
	}
	pool := domain.NewEmptyPool()
	pool.CurrentValue = decimal.NewFromInt(10)
	return shares.View(pool), nil
}

func TestRefreshJob_Run(t *testing.T) {
	r := &stubRefresher{}
	job := NewRefreshJob(r, time.Second, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, int32(1), r.calls.Load())
	assert.True(t, r.deadline, "refresh runs under its own timeout")
	assert.Equal(t, "pool_refresh", job.Name())
}

func TestRefreshJob_PropagatesError(t *testing.T) {
	r := &stubRefresher{err: domain.ErrUpstream}

	err := NewRefreshJob(r, 0, zerolog.Nop()).Run()

	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.False(t, r.deadline)
}

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	r := &stubRefresher{}
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1s", NewRefreshJob(r, time.Second, zerolog.Nop())))

	s.Start()
	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	err := New(zerolog.Nop()).AddJob("every now and then", NewRefreshJob(&stubRefresher{}, 0, zerolog.Nop()))
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	r := &stubRefresher{err: errors.New("boom")}
	err := New(zerolog.Nop()).RunNow(NewRefreshJob(r, 0, zerolog.Nop()))
	assert.EqualError(t, err, "boom")
}
