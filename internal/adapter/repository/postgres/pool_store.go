package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/investpool-backend/internal/adapter/repository/document"
	"github.com/simaogato/investpool-backend/internal/domain"
)

// poolStore implements domain.PoolStore on a single pool_records row per key.
// The version column is the compare-and-swap token.
type poolStore struct {
	db *DB
}

// NewPoolStore creates a new Postgres pool store
func NewPoolStore(db *DB) domain.PoolStore {
	return &poolStore{db: db}
}

// Get retrieves the pool record and its version
func (r *poolStore) Get(ctx context.Context, key string) (*domain.PoolRecord, error) {
	query := `
		SELECT version, document
		FROM pool_records
		WHERE pool_key = $1
	`

	var version int64
	var doc []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("pool %q", key)
		}
		return nil, fmt.Errorf("failed to get pool record: %w", err)
	}

	record, err := document.UnmarshalJSON(doc)
	if err != nil {
		return nil, err
	}
	record.Version = domain.Version(version)
	return record, nil
}

// Put replaces the pool record if the stored version equals expected.
// expected == NoVersion inserts, and conflicts if a row already exists.
func (r *poolStore) Put(ctx context.Context, key string, record *domain.PoolRecord, expected domain.Version) (domain.Version, error) {
	doc, err := document.MarshalJSON(record)
	if err != nil {
		return domain.NoVersion, fmt.Errorf("failed to encode pool record: %w", err)
	}

	var query string
	args := []any{key, string(doc)}
	if expected == domain.NoVersion {
		query = `
			INSERT INTO pool_records (pool_key, version, document, updated_at)
			VALUES ($1, 1, $2, now())
			ON CONFLICT (pool_key) DO NOTHING
			RETURNING version
		`
	} else {
		query = `
			UPDATE pool_records
			SET version = version + 1, document = $2, updated_at = now()
			WHERE pool_key = $1 AND version = $3
			RETURNING version
		`
		args = append(args, int64(expected))
	}

	var version int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NoVersion, fmt.Errorf("%w: pool %q is no longer at version %d", domain.ErrVersionConflict, key, expected)
		}
		return domain.NoVersion, fmt.Errorf("failed to write pool record: %w", err)
	}
	return domain.Version(version), nil
}
