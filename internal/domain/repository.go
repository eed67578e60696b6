package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PoolStore is the externally supplied atomic key-value store holding pool records
type PoolStore interface {
	// Get retrieves the record stored under key together with its Version.
	// Returns an ErrNotFound-wrapped error if nothing is stored.
	Get(ctx context.Context, key string) (*PoolRecord, error)

	// Put replaces the record under key only if the stored version still equals
	// expected (NoVersion: only if nothing is stored yet). Returns the new version,
	// or an ErrVersionConflict-wrapped error on mismatch.
	Put(ctx context.Context, key string, record *PoolRecord, expected Version) (Version, error)
}

// PriceOracle reports the current total market value of the pool
type PriceOracle interface {
	// CurrentPoolValue returns the pool's total value in the reference currency
	CurrentPoolValue(ctx context.Context) (decimal.Decimal, error)
}
