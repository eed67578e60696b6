package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/simaogato/investpool-backend/internal/domain"
)

type entry struct {
	record  *domain.PoolRecord
	version domain.Version
}

// Store is an in-process PoolStore. Records are copied on the way in and out.
type Store struct {
	mu      sync.Mutex
	records map[string]entry
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{records: make(map[string]entry)}
}

// Get retrieves the record stored under key
func (s *Store) Get(ctx context.Context, key string) (*domain.PoolRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[key]
	if !ok {
		return nil, domain.NotFoundf("pool %q", key)
	}
	record := e.record.Clone()
	record.Version = e.version
	return record, nil
}

// Put replaces the record under key if the stored version equals expected
func (s *Store) Put(ctx context.Context, key string, record *domain.PoolRecord, expected domain.Version) (domain.Version, error) {
	if err := ctx.Err(); err != nil {
		return domain.NoVersion, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := domain.NoVersion
	if e, ok := s.records[key]; ok {
		current = e.version
	}
	if current != expected {
		return domain.NoVersion, fmt.Errorf("%w: pool %q is at version %d, expected %d",
			domain.ErrVersionConflict, key, current, expected)
	}

	next := current + 1
	stored := record.Clone()
	stored.Version = next
	s.records[key] = entry{record: stored, version: next}
	return next, nil
}
