package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tolerance is the numeric slack allowed when checking ledger invariants
var Tolerance = decimal.New(1, -9)

// Version is the opaque optimistic-concurrency token of a stored PoolRecord.
// Only stores interpret it; NoVersion means "not stored yet".
type Version uint64

// NoVersion is the expected version for creating a record that does not exist
const NoVersion Version = 0

// MaxRecentOperations bounds how many committed operation ids a record remembers
const MaxRecentOperations = 64

// PoolRecord represents the shared pool ledger in the domain layer.
// It is replaced as a whole on every committed transition.
type PoolRecord struct {
	Members      []Member
	TotalShares  decimal.Decimal
	CurrentValue decimal.Decimal // Total market value in the reference currency
	Version      Version

	UpdatedAt        time.Time
	RecentOperations []uuid.UUID // Ids of the latest committed operations, oldest first
}

// NewEmptyPool returns a pool with no members, no shares and no value
func NewEmptyPool() *PoolRecord {
	return &PoolRecord{
		Members:      []Member{},
		TotalShares:  decimal.Zero,
		CurrentValue: decimal.Zero,
	}
}

// Clone returns a deep copy so transitions never alias caller state
func (p *PoolRecord) Clone() *PoolRecord {
	if p == nil {
		return nil
	}
	c := *p
	c.Members = make([]Member, len(p.Members))
	copy(c.Members, p.Members)
	if p.RecentOperations != nil {
		c.RecentOperations = make([]uuid.UUID, len(p.RecentOperations))
		copy(c.RecentOperations, p.RecentOperations)
	}
	return &c
}

// HasOperation reports whether the operation with the given id is among the recent commits
func (p *PoolRecord) HasOperation(id uuid.UUID) bool {
	for _, op := range p.RecentOperations {
		if op == id {
			return true
		}
	}
	return false
}

// RecordOperation appends id to the recent operations, dropping the oldest past MaxRecentOperations
func (p *PoolRecord) RecordOperation(id uuid.UUID) {
	ops := append(p.RecentOperations, id)
	if over := len(ops) - MaxRecentOperations; over > 0 {
		ops = append([]uuid.UUID(nil), ops[over:]...)
	}
	p.RecentOperations = ops
}

// LastOperation returns the id of the operation that produced this record, or uuid.Nil
func (p *PoolRecord) LastOperation() uuid.UUID {
	if len(p.RecentOperations) == 0 {
		return uuid.Nil
	}
	return p.RecentOperations[len(p.RecentOperations)-1]
}

// FindMember returns the index of the member with the given id, or -1
func (p *PoolRecord) FindMember(id uuid.UUID) int {
	for i := range p.Members {
		if p.Members[i].ID == id {
			return i
		}
	}
	return -1
}

// SumShares recomputes the total from the member set
func (p *PoolRecord) SumShares() decimal.Decimal {
	total := decimal.Zero
	for _, m := range p.Members {
		total = total.Add(m.Shares)
	}
	return total
}

// Validate checks the ledger invariants:
//   - totalShares equals the sum of member shares (within Tolerance)
//   - currentValue is non-negative
//   - every member is well formed and ids are unique
//
// Violations are reported as ErrInvalidState.
func (p *PoolRecord) Validate() error {
	if p.CurrentValue.IsNegative() {
		return InvalidStatef("current value %s is negative", p.CurrentValue.String())
	}

	seen := make(map[uuid.UUID]struct{}, len(p.Members))
	for i := range p.Members {
		m := &p.Members[i]
		if err := m.Validate(); err != nil {
			return InvalidStatef("member %d: %v", i, err)
		}
		if _, dup := seen[m.ID]; dup {
			return InvalidStatef("duplicate member id %s", m.ID)
		}
		seen[m.ID] = struct{}{}
	}

	if drift := p.TotalShares.Sub(p.SumShares()).Abs(); drift.GreaterThanOrEqual(Tolerance) {
		return InvalidStatef("total shares %s drift from member sum by %s", p.TotalShares.String(), drift.String())
	}
	return nil
}

// String is used in log lines
func (p *PoolRecord) String() string {
	return fmt.Sprintf("pool{members=%d totalShares=%s currentValue=%s version=%d}",
		len(p.Members), p.TotalShares.String(), p.CurrentValue.String(), p.Version)
}
