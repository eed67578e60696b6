package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/simaogato/investpool-backend/internal/domain"
)

// PoolSeeder handles creation of the pool record on first start
type PoolSeeder struct {
	store domain.PoolStore
	key   string
	log   zerolog.Logger
	now   func() time.Time
}

// NewPoolSeeder creates a new PoolSeeder instance
func NewPoolSeeder(store domain.PoolStore, key string, log zerolog.Logger) *PoolSeeder {
	return &PoolSeeder{
		store: store,
		key:   key,
		log:   log.With().Str("component", "seeder").Logger(),
		now:   time.Now,
	}
}

// Seed ensures the pool record exists in the store.
// If it doesn't exist, an empty pool is created; an existing pool is left untouched.
func (s *PoolSeeder) Seed(ctx context.Context) error {
	existing, err := s.store.Get(ctx, s.key)
	if err == nil {
		s.log.Debug().Uint64("version", uint64(existing.Version)).Msg("pool already exists")
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	pool := domain.NewEmptyPool()
	pool.UpdatedAt = s.now().UTC()

	version, err := s.store.Put(ctx, s.key, pool, domain.NoVersion)
	if errors.Is(err, domain.ErrVersionConflict) {
		// Another instance created it between our read and write
		s.log.Info().Msg("pool created concurrently")
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info().Str("key", s.key).Uint64("version", uint64(version)).Msg("empty pool created")
	return nil
}
