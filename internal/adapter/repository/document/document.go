// Package document holds the persisted form of a pool record.
//
// Decimals are stored as strings so no precision is lost in either encoding.
// The version is owned by the store and never part of the document.
package document

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/simaogato/investpool-backend/internal/domain"
)

// Number is a decimal kept as its exact text. JSON accepts both "12.5" and 12.5,
// msgpack stores it as a string.
type Number string

// UnmarshalJSON accepts a quoted or a bare JSON number
func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = Number(num)
	return nil
}

// Member is the stored form of domain.Member
type Member struct {
	ID                 string  `json:"id" msgpack:"id"`
	Name               string  `json:"name" msgpack:"name"`
	Shares             Number  `json:"shares" msgpack:"shares"`
	InitialInvestment  *Number `json:"initialInvestment,omitempty" msgpack:"initialInvestment,omitempty"`
	JoinReferenceValue *Number `json:"joinReferenceValue,omitempty" msgpack:"joinReferenceValue,omitempty"`

	// Legacy names, read but never written
	Contribution         *Number `json:"contribution,omitempty" msgpack:"contribution,omitempty"`
	PortfolioValueAtTime *Number `json:"portfolioValueAtTime,omitempty" msgpack:"portfolioValueAtTime,omitempty"`
}

// Pool is the stored form of domain.PoolRecord
type Pool struct {
	Members      []Member `json:"members" msgpack:"members"`
	TotalShares  *Number  `json:"totalShares,omitempty" msgpack:"totalShares,omitempty"`
	CurrentValue *Number  `json:"currentValue,omitempty" msgpack:"currentValue,omitempty"`

	UpdatedAt        time.Time `json:"updatedAt,omitempty" msgpack:"updatedAt,omitempty"`
	RecentOperations []string  `json:"recentOperations,omitempty" msgpack:"recentOperations,omitempty"`

	// TotalPool is the legacy name of CurrentValue, read but never written
	TotalPool *Number `json:"totalPool,omitempty" msgpack:"totalPool,omitempty"`
}

// FromRecord converts a domain record into its stored form
func FromRecord(record *domain.PoolRecord) *Pool {
	doc := &Pool{
		Members:      make([]Member, 0, len(record.Members)),
		TotalShares:  number(record.TotalShares),
		CurrentValue: number(record.CurrentValue),
		UpdatedAt:    record.UpdatedAt,
	}
	for _, op := range record.RecentOperations {
		doc.RecentOperations = append(doc.RecentOperations, op.String())
	}

	for _, m := range record.Members {
		dm := Member{
			ID:                m.ID.String(),
			Name:              m.Name,
			Shares:            Number(m.Shares.String()),
			InitialInvestment: number(m.InitialInvestment),
		}
		if m.JoinReferenceValue.Valid {
			dm.JoinReferenceValue = number(m.JoinReferenceValue.Decimal)
		}
		doc.Members = append(doc.Members, dm)
	}
	return doc
}

// ToRecord converts a stored document back into a domain record.
// Documents written by the earlier web app are accepted:
//   - currentValue falls back to totalPool
//   - a member's basis is contribution when present, else initialInvestment
//   - joinReferenceValue falls back to a non-zero portfolioValueAtTime
//   - a missing totalShares is recomputed from the members
//
// Unparsable values are reported as ErrInvalidState.
func (d *Pool) ToRecord() (*domain.PoolRecord, error) {
	record := domain.NewEmptyPool()
	record.UpdatedAt = d.UpdatedAt

	var err error
	if record.CurrentValue, err = parseOptional("currentValue", d.CurrentValue, d.TotalPool); err != nil {
		return nil, err
	}
	for _, raw := range d.RecentOperations {
		op, err := uuid.Parse(raw)
		if err != nil {
			return nil, domain.InvalidStatef("stored operation id %q: %v", raw, err)
		}
		record.RecentOperations = append(record.RecentOperations, op)
	}

	for i, dm := range d.Members {
		m := domain.Member{Name: dm.Name}
		if m.ID, err = uuid.Parse(dm.ID); err != nil {
			return nil, domain.InvalidStatef("stored member %d id %q: %v", i, dm.ID, err)
		}
		if m.Shares, err = parseDecimal("shares", dm.Shares); err != nil {
			return nil, err
		}
		if m.InitialInvestment, err = parseOptional("initialInvestment", dm.Contribution, dm.InitialInvestment); err != nil {
			return nil, err
		}

		switch {
		case dm.JoinReferenceValue != nil:
			ref, err := parseDecimal("joinReferenceValue", *dm.JoinReferenceValue)
			if err != nil {
				return nil, err
			}
			m.JoinReferenceValue = decimal.NewNullDecimal(ref)
		case dm.PortfolioValueAtTime != nil:
			ref, err := parseDecimal("portfolioValueAtTime", *dm.PortfolioValueAtTime)
			if err != nil {
				return nil, err
			}
			if !ref.IsZero() {
				m.JoinReferenceValue = decimal.NewNullDecimal(ref)
			}
		}
		record.Members = append(record.Members, m)
	}

	if d.TotalShares != nil {
		if record.TotalShares, err = parseDecimal("totalShares", *d.TotalShares); err != nil {
			return nil, err
		}
	} else {
		record.TotalShares = record.SumShares()
	}
	return record, nil
}

// MarshalJSON encodes a record as a JSON document
func MarshalJSON(record *domain.PoolRecord) ([]byte, error) {
	return json.Marshal(FromRecord(record))
}

// UnmarshalJSON decodes a JSON document into a record
func UnmarshalJSON(data []byte) (*domain.PoolRecord, error) {
	var doc Pool
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, domain.InvalidStatef("decode pool document: %v", err)
	}
	return doc.ToRecord()
}

// MarshalMsgpack encodes a record as a msgpack document
func MarshalMsgpack(record *domain.PoolRecord) ([]byte, error) {
	return msgpack.Marshal(FromRecord(record))
}

// UnmarshalMsgpack decodes a msgpack document into a record
func UnmarshalMsgpack(data []byte) (*domain.PoolRecord, error) {
	var doc Pool
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, domain.InvalidStatef("decode pool document: %v", err)
	}
	return doc.ToRecord()
}

func parseDecimal(field string, raw Number) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, domain.InvalidStatef("stored %s %q is not a number", field, string(raw))
	}
	return d, nil
}

// parseOptional parses the first present candidate, or returns zero when none is
func parseOptional(field string, candidates ...*Number) (decimal.Decimal, error) {
	for _, raw := range candidates {
		if raw != nil {
			return parseDecimal(field, *raw)
		}
	}
	return decimal.Zero, nil
}

func number(d decimal.Decimal) *Number {
	n := Number(d.String())
	return &n
}
