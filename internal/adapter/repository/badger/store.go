// Package badger stores pool records in an embedded BadgerDB.
//
// Each value is an 8-byte big-endian version followed by the msgpack
// document. Writes run in an update transaction, so a concurrent writer that
// commits first makes the loser fail with badger.ErrConflict, which is
// reported as domain.ErrVersionConflict like a stale expected version.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/simaogato/investpool-backend/internal/adapter/repository/document"
	"github.com/simaogato/investpool-backend/internal/domain"
)

const keyPrefix = "pool/"

// Config holds configuration for the BadgerDB instance
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool
	// SyncWrites fsyncs every commit
	SyncWrites bool
}

// zerologAdapter adapts zerolog.Logger to BadgerDB's Logger interface
type zerologAdapter struct {
	log zerolog.Logger
}

func (l zerologAdapter) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l zerologAdapter) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l zerologAdapter) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l zerologAdapter) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}

// Store implements domain.PoolStore on BadgerDB
type Store struct {
	db *badger.DB
}

// Open opens the database described by cfg
func Open(cfg Config, log zerolog.Logger) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zerologAdapter{log: log.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves the pool record and its version
func (s *Store) Get(ctx context.Context, key string) (*domain.PoolRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *domain.PoolRecord
	err := s.db.View(func(txn *badger.Txn) error {
		version, value, err := read(txn, key)
		if err != nil {
			return err
		}
		if record, err = document.UnmarshalMsgpack(value); err != nil {
			return err
		}
		record.Version = version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Put replaces the pool record if the stored version equals expected
func (s *Store) Put(ctx context.Context, key string, record *domain.PoolRecord, expected domain.Version) (domain.Version, error) {
	if err := ctx.Err(); err != nil {
		return domain.NoVersion, err
	}

	value, err := document.MarshalMsgpack(record)
	if err != nil {
		return domain.NoVersion, fmt.Errorf("encode pool record: %w", err)
	}

	next := expected + 1
	err = s.db.Update(func(txn *badger.Txn) error {
		current, _, err := read(txn, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			current = domain.NoVersion
		case err != nil:
			return err
		}
		if current != expected {
			return fmt.Errorf("%w: pool %q is at version %d, expected %d",
				domain.ErrVersionConflict, key, current, expected)
		}

		buf := make([]byte, 8+len(value))
		binary.BigEndian.PutUint64(buf, uint64(next))
		copy(buf[8:], value)
		return txn.Set([]byte(keyPrefix+key), buf)
	})
	if errors.Is(err, badger.ErrConflict) {
		return domain.NoVersion, fmt.Errorf("%w: pool %q changed during commit", domain.ErrVersionConflict, key)
	}
	if err != nil {
		return domain.NoVersion, err
	}
	return next, nil
}

func read(txn *badger.Txn, key string) (domain.Version, []byte, error) {
	item, err := txn.Get([]byte(keyPrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NoVersion, nil, domain.NotFoundf("pool %q", key)
	}
	if err != nil {
		return domain.NoVersion, nil, fmt.Errorf("read pool %q: %w", key, err)
	}

	raw, err := item.ValueCopy(nil)
	if err != nil {
		return domain.NoVersion, nil, fmt.Errorf("read pool %q: %w", key, err)
	}
	if len(raw) < 8 {
		return domain.NoVersion, nil, domain.InvalidStatef("stored pool %q is truncated", key)
	}
	return domain.Version(binary.BigEndian.Uint64(raw[:8])), raw[8:], nil
}
