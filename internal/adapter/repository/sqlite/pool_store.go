package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/investpool-backend/internal/adapter/repository/document"
	"github.com/simaogato/investpool-backend/internal/domain"
)

// PoolStore implements domain.PoolStore on a pool_records table
type PoolStore struct {
	db *DB
}

// NewPoolStore creates a new SQLite pool store
func NewPoolStore(db *DB) *PoolStore {
	return &PoolStore{db: db}
}

// Get retrieves the pool record and its version
func (s *PoolStore) Get(ctx context.Context, key string) (*domain.PoolRecord, error) {
	var version int64
	var doc string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT version, document FROM pool_records WHERE pool_key = ?`, key,
	).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("pool %q", key)
		}
		return nil, fmt.Errorf("failed to get pool record: %w", err)
	}

	record, err := document.UnmarshalJSON([]byte(doc))
	if err != nil {
		return nil, err
	}
	record.Version = domain.Version(version)
	return record, nil
}

// Put replaces the pool record if the stored version equals expected
func (s *PoolStore) Put(ctx context.Context, key string, record *domain.PoolRecord, expected domain.Version) (domain.Version, error) {
	doc, err := document.MarshalJSON(record)
	if err != nil {
		return domain.NoVersion, fmt.Errorf("failed to encode pool record: %w", err)
	}

	var res sql.Result
	if expected == domain.NoVersion {
		res, err = s.db.conn.ExecContext(ctx,
			`INSERT INTO pool_records (pool_key, version, document, updated_at)
			 VALUES (?, 1, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT (pool_key) DO NOTHING`,
			key, string(doc))
	} else {
		res, err = s.db.conn.ExecContext(ctx,
			`UPDATE pool_records
			 SET version = version + 1, document = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE pool_key = ? AND version = ?`,
			string(doc), key, int64(expected))
	}
	if err != nil {
		return domain.NoVersion, fmt.Errorf("failed to write pool record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.NoVersion, fmt.Errorf("failed to write pool record: %w", err)
	}
	if n == 0 {
		return domain.NoVersion, fmt.Errorf("%w: pool %q is no longer at version %d", domain.ErrVersionConflict, key, expected)
	}
	return expected + 1, nil
}
