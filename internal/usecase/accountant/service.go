package accountant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/membership"
	"github.com/simaogato/investpool-backend/internal/usecase/shares"
	"github.com/simaogato/investpool-backend/internal/usecase/transaction"
)

// Operation names used in logs and metric labels
const (
	OpSnapshot     = "snapshot"
	OpAddMember    = "add_member"
	OpRemoveMember = "remove_member"
	OpDeposit      = "deposit"
	OpWithdraw     = "withdraw"
	OpRefresh      = "refresh"
	OpQuote        = "quote"
)

// errUnchanged lets a transition report that nothing needs to be written
var errUnchanged = errors.New("pool unchanged")

// Config tunes the read/transition/compare-and-swap loop
type Config struct {
	PoolKey        string
	MaxCASAttempts int           // Attempts before a mutation fails with ErrConflict
	MaxRetries     int           // Retries of a transient store or oracle failure
	BackoffBase    time.Duration // First retry delay
	BackoffMax     time.Duration // Retry delay cap
	RequestTimeout time.Duration // Upper bound for one operation, 0 disables
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		PoolKey:        "personalUser",
		MaxCASAttempts: 5,
		MaxRetries:     3,
		BackoffBase:    100 * time.Millisecond,
		BackoffMax:     2 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Transition computes the next pool record from the current one.
// It must not modify its input.
type Transition func(pool *domain.PoolRecord) (*domain.PoolRecord, error)

// Quote is the preview of what a prospective member would receive
type Quote struct {
	IssuancePrice decimal.Decimal
	Shares        decimal.Decimal
}

// AccountantService orchestrates every pool transition against the store and the oracle
type AccountantService struct {
	Store  domain.PoolStore
	Oracle domain.PriceOracle // nil disables Refresh
	Config Config
	Log    zerolog.Logger

	Now            func() time.Time
	NewOperationID func() uuid.UUID

	sleep func(ctx context.Context, d time.Duration) error
}

// NewAccountantService creates a new AccountantService instance
func NewAccountantService(
	store domain.PoolStore,
	oracle domain.PriceOracle,
	cfg Config,
	log zerolog.Logger,
) *AccountantService {
	defaults := DefaultConfig()
	if cfg.PoolKey == "" {
		cfg.PoolKey = defaults.PoolKey
	}
	if cfg.MaxCASAttempts <= 0 {
		cfg.MaxCASAttempts = defaults.MaxCASAttempts
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaults.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}

	return &AccountantService{
		Store:          store,
		Oracle:         oracle,
		Config:         cfg,
		Log:            log.With().Str("component", "accountant").Logger(),
		Now:            time.Now,
		NewOperationID: uuid.New,
		sleep:          sleepContext,
	}
}

// Snapshot returns the current pool projection. A pool that was never stored reads as empty.
func (s *AccountantService) Snapshot(ctx context.Context) (*shares.PoolView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	pool, err := s.load(ctx, OpSnapshot)
	s.record(OpSnapshot, start, err)
	if err != nil {
		return nil, err
	}
	return shares.View(pool), nil
}

// AddMember admits a new member and returns the committed pool and the new member
func (s *AccountantService) AddMember(ctx context.Context, input membership.AddMemberInput) (*shares.PoolView, *domain.Member, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// One id per operation so a re-applied transition issues the same member
	memberID := uuid.New()
	newID := func() uuid.UUID { return memberID }

	pool, err := s.mutate(ctx, OpAddMember, func(p *domain.PoolRecord) (*domain.PoolRecord, error) {
		next, _, err := membership.AddMember(p, input, newID)
		return next, err
	})
	if err != nil {
		return nil, nil, err
	}

	idx := pool.FindMember(memberID)
	if idx < 0 {
		return nil, nil, domain.InvalidStatef("committed pool is missing new member %s", memberID)
	}
	member := pool.Members[idx]
	return shares.View(pool), &member, nil
}

// RemoveMember redeems a member at the current price and drops them from the pool
func (s *AccountantService) RemoveMember(ctx context.Context, memberID uuid.UUID) (*shares.PoolView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pool, err := s.mutate(ctx, OpRemoveMember, func(p *domain.PoolRecord) (*domain.PoolRecord, error) {
		return membership.RemoveMember(p, memberID)
	})
	if err != nil {
		return nil, err
	}
	return shares.View(pool), nil
}

// Deposit adds capital for an existing member
func (s *AccountantService) Deposit(ctx context.Context, memberID uuid.UUID, amount decimal.Decimal) (*shares.PoolView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pool, err := s.mutate(ctx, OpDeposit, func(p *domain.PoolRecord) (*domain.PoolRecord, error) {
		return transaction.Deposit(p, memberID, amount)
	})
	if err != nil {
		return nil, err
	}
	return shares.View(pool), nil
}

// Withdraw redeems capital for an existing member
func (s *AccountantService) Withdraw(ctx context.Context, memberID uuid.UUID, amount decimal.Decimal) (*shares.PoolView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pool, err := s.mutate(ctx, OpWithdraw, func(p *domain.PoolRecord) (*domain.PoolRecord, error) {
		return transaction.Withdraw(p, memberID, amount)
	})
	if err != nil {
		return nil, err
	}
	return shares.View(pool), nil
}

// Refresh marks the pool to market with the oracle's current value.
// Logic:
//  1. Fetch the value from the oracle (transient failures retried)
//  2. Reject a negative reading as ErrUpstream
//  3. Run the same CAS loop as every other mutation, setting only currentValue
//  4. Skip the write when the stored value already matches
func (s *AccountantService) Refresh(ctx context.Context) (*shares.PoolView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if s.Oracle == nil {
		err := fmt.Errorf("%w: no price oracle configured", domain.ErrUpstream)
		s.record(OpRefresh, time.Now(), err)
		return nil, err
	}

	value, err := s.fetchValue(ctx)
	if err != nil {
		s.record(OpRefresh, time.Now(), err)
		return nil, err
	}

	pool, err := s.mutate(ctx, OpRefresh, func(p *domain.PoolRecord) (*domain.PoolRecord, error) {
		if p.CurrentValue.Equal(value) {
			return nil, errUnchanged
		}
		next := p.Clone()
		next.CurrentValue = value
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return shares.View(pool), nil
}

// QuoteShares previews the issuance price and shares for a prospective investment
func (s *AccountantService) QuoteShares(ctx context.Context, investment decimal.Decimal, referenceValue decimal.NullDecimal) (*Quote, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if investment.LessThanOrEqual(decimal.Zero) {
		err := domain.Validationf("investment must be positive")
		s.record(OpQuote, start, err)
		return nil, err
	}

	pool, err := s.load(ctx, OpQuote)
	s.record(OpQuote, start, err)
	if err != nil {
		return nil, err
	}

	price := membership.IssuancePrice(pool, referenceValue)
	return &Quote{
		IssuancePrice: price,
		Shares:        investment.Div(price),
	}, nil
}

// mutate runs the read/transition/compare-and-swap loop.
// Business errors from fn are returned immediately. Version conflicts restart the
// loop up to MaxCASAttempts. Transient store failures are retried with backoff
// up to MaxRetries. A transiently failed write that actually landed is detected by
// its operation id among the record's recent operations and is not applied twice,
// even when other writers committed on top of it.
func (s *AccountantService) mutate(ctx context.Context, op string, fn Transition) (_ *domain.PoolRecord, err error) {
	start := time.Now()
	defer func() { s.record(op, start, err) }()

	opID := s.NewOperationID()
	log := s.Log.With().Str("operation", op).Str("operation_id", opID.String()).Logger()

	conflicts, failures := 0, 0
	for {
		current, err := s.load(ctx, op)
		if err != nil {
			return nil, err
		}

		if current.HasOperation(opID) {
			log.Info().Uint64("version", uint64(current.Version)).Msg("write already committed")
			return current, nil
		}

		next, err := fn(current.Clone())
		if errors.Is(err, errUnchanged) {
			log.Debug().Msg("pool unchanged, skipping write")
			return current, nil
		}
		if err != nil {
			return nil, err
		}

		next.RecordOperation(opID)
		next.UpdatedAt = s.Now().UTC()
		if err := next.Validate(); err != nil {
			log.Error().Err(err).Msg("transition produced an invalid pool")
			return nil, err
		}

		version, err := s.Store.Put(ctx, s.Config.PoolKey, next, current.Version)
		switch {
		case err == nil:
			next.Version = version
			observePool(next)
			log.Info().
				Uint64("version", uint64(version)).
				Str("current_value", next.CurrentValue.String()).
				Str("total_shares", next.TotalShares.String()).
				Int("members", len(next.Members)).
				Msg("pool committed")
			return next, nil

		case errors.Is(err, domain.ErrVersionConflict):
			conflicts++
			casConflicts.WithLabelValues(op).Inc()
			log.Debug().Int("attempt", conflicts).Msg("version conflict")
			if conflicts >= s.Config.MaxCASAttempts {
				log.Error().Int("attempts", conflicts).Msg("giving up after repeated conflicts")
				return nil, fmt.Errorf("%w: %s gave up after %d attempts", domain.ErrConflict, op, conflicts)
			}

		case domain.IsPermanent(err):
			return nil, err

		default:
			if failures >= s.Config.MaxRetries {
				log.Error().Err(err).Int("retries", failures).Msg("store write failed")
				return nil, upstream("store write", err)
			}
			upstreamRetries.WithLabelValues(op).Inc()
			log.Warn().Err(err).Int("retry", failures+1).Msg("store write failed, retrying")
			if err := s.sleep(ctx, CalculateBackoff(failures, s.Config.BackoffBase, s.Config.BackoffMax)); err != nil {
				return nil, err
			}
			failures++
		}
	}
}

// load reads and checks the pool record, retrying transient failures.
// A missing record reads as an empty pool that has never been stored.
func (s *AccountantService) load(ctx context.Context, op string) (*domain.PoolRecord, error) {
	for retry := 0; ; retry++ {
		pool, err := s.Store.Get(ctx, s.Config.PoolKey)
		if err == nil {
			if err := pool.Validate(); err != nil {
				s.Log.Error().Err(err).Str("operation", op).Msg("stored pool violates invariants")
				return nil, err
			}
			return pool, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewEmptyPool(), nil
		}
		if domain.IsPermanent(err) {
			return nil, err
		}
		if retry >= s.Config.MaxRetries {
			s.Log.Error().Err(err).Str("operation", op).Int("retries", retry).Msg("store read failed")
			return nil, upstream("store read", err)
		}

		upstreamRetries.WithLabelValues(op).Inc()
		s.Log.Warn().Err(err).Str("operation", op).Int("retry", retry+1).Msg("store read failed, retrying")
		if err := s.sleep(ctx, CalculateBackoff(retry, s.Config.BackoffBase, s.Config.BackoffMax)); err != nil {
			return nil, err
		}
	}
}

// fetchValue asks the oracle for the pool value, retrying transient failures
func (s *AccountantService) fetchValue(ctx context.Context) (decimal.Decimal, error) {
	for retry := 0; ; retry++ {
		value, err := s.Oracle.CurrentPoolValue(ctx)
		if err == nil {
			if value.IsNegative() {
				return decimal.Zero, fmt.Errorf("%w: oracle reported negative pool value %s", domain.ErrUpstream, value.String())
			}
			return value, nil
		}
		if domain.IsPermanent(err) {
			return decimal.Zero, err
		}
		if retry >= s.Config.MaxRetries {
			s.Log.Error().Err(err).Int("retries", retry).Msg("oracle unavailable")
			return decimal.Zero, upstream("oracle", err)
		}

		upstreamRetries.WithLabelValues(OpRefresh).Inc()
		s.Log.Warn().Err(err).Int("retry", retry+1).Msg("oracle failed, retrying")
		if err := s.sleep(ctx, CalculateBackoff(retry, s.Config.BackoffBase, s.Config.BackoffMax)); err != nil {
			return decimal.Zero, err
		}
	}
}

func (s *AccountantService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Config.RequestTimeout)
}

func (s *AccountantService) record(op string, start time.Time, err error) {
	mutationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	mutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// upstream wraps err as ErrUpstream unless it already is one
func upstream(what string, err error) error {
	if errors.Is(err, domain.ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrUpstream, what, err)
}
