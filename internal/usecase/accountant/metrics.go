package accountant

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/shares"
)

var (
	// mutationsTotal counts accountant operations by result
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "investpool_mutations_total",
		Help: "Total pool operations by operation and result",
	}, []string{"operation", "result"})

	// casConflicts counts version mismatches seen on write
	casConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "investpool_cas_conflicts_total",
		Help: "Compare-and-swap version conflicts by operation",
	}, []string{"operation"})

	// upstreamRetries counts transient store or oracle failures that were retried
	upstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "investpool_upstream_retries_total",
		Help: "Retried transient store or oracle failures by operation",
	}, []string{"operation"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "investpool_mutation_duration_seconds",
		Help:    "Pool operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"operation"})

	currentValueGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "investpool_current_value",
		Help: "Last committed pool value in the reference currency",
	})

	totalSharesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "investpool_total_shares",
		Help: "Last committed number of outstanding shares",
	})

	sharePriceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "investpool_share_price",
		Help: "Last committed share price",
	})
)

// resultLabel maps an operation outcome to a low-cardinality label
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func observePool(pool *domain.PoolRecord) {
	cv, _ := pool.CurrentValue.Float64()
	ts, _ := pool.TotalShares.Float64()
	price, _ := shares.SharePrice(pool).Float64()
	currentValueGauge.Set(cv)
	totalSharesGauge.Set(ts)
	sharePriceGauge.Set(price)
}
