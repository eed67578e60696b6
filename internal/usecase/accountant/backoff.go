package accountant

import (
	"context"
	"time"
)

// CalculateBackoff returns the exponential backoff duration for a given retry count.
// Logic: base * 2^retryCount, capped at max.
// If retryCount is negative, it returns base.
func CalculateBackoff(retryCount int, base, max time.Duration) time.Duration {
	if retryCount < 0 {
		return base
	}

	// 2^30 times any sane base is already past max
	if retryCount > 30 {
		return max
	}

	backoff := base * time.Duration(1<<retryCount)
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
