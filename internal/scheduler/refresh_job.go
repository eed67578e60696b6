package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/simaogato/investpool-backend/internal/usecase/shares"
)

// Refresher marks the pool to market
type Refresher interface {
	Refresh(ctx context.Context) (*shares.PoolView, error)
}

// RefreshJob reconciles the pool value against the price oracle
type RefreshJob struct {
	refresher Refresher
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefreshJob creates a job that calls Refresh with its own timeout
func NewRefreshJob(refresher Refresher, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		timeout:   timeout,
		log:       log.With().Str("job", "pool_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "pool_refresh"
}

// Run performs one refresh
func (j *RefreshJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	view, err := j.refresher.Refresh(ctx)
	if err != nil {
		return err
	}

	j.log.Debug().
		Str("current_value", view.Record.CurrentValue.String()).
		Str("share_price", view.Summary.SharePrice.String()).
		Uint64("version", uint64(view.Record.Version)).
		Msg("pool refreshed")
	return nil
}
