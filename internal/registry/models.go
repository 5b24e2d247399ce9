// Package registry is the persistent store of known-bad entities, keyed by
// (entity_type, entity_value).
package registry

import (
	"context"
	"time"
)

// Entity type labels used as the first half of the registry key.
const (
	EntityPhone   = "phone"
	EntityURL     = "url"
	EntityEmail   = "email"
	EntityBitcoin = "bitcoin"
	EntityPayment = "payment"
	EntityCompany = "company"
)

// Key is the logical unique key of a scam report.
type Key struct {
	Type  string
	Value string
}

// ScamReport is one registry row. EntityValue is stored normalized
// (E.164 for phones, registrable domain for URLs, lowercase for emails).
type ScamReport struct {
	ID           int64     `json:"id"`
	EntityType   string    `json:"entity_type"`
	EntityValue  string    `json:"entity_value"`
	ReportCount  int       `json:"report_count"`
	RiskScore    int       `json:"risk_score"`
	FirstSeen    time.Time `json:"first_seen"`
	LastReported time.Time `json:"last_reported"`
	Evidence     []string  `json:"evidence"`
	Verified     bool      `json:"verified"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LookupResult is the query-facing view of a registry row.
type LookupResult struct {
	Found        bool      `json:"found"`
	EntityType   string    `json:"entity_type"`
	EntityValue  string    `json:"entity_value"`
	ReportCount  int       `json:"report_count,omitempty"`
	RiskScore    int       `json:"risk_score,omitempty"`
	Evidence     []string  `json:"evidence,omitempty"`
	Verified     bool      `json:"verified,omitempty"`
	FirstSeen    time.Time `json:"first_seen,omitzero"`
	LastReported time.Time `json:"last_reported,omitzero"`
	Notes        string    `json:"notes,omitempty"`
}

// Store abstracts the registry backend. The Postgres implementation is the
// production path; the memory implementation backs tests and keyless dev.
type Store interface {
	// Lookup returns the report for a key, or nil when absent.
	Lookup(ctx context.Context, key Key) (*ScamReport, error)

	// LookupBulk resolves many keys in a single query. Missing keys are
	// simply absent from the returned map.
	LookupBulk(ctx context.Context, keys []Key) (map[Key]*ScamReport, error)

	// Upsert inserts a new report with ReportCount=1, or increments the
	// existing row's count, appends evidence, refreshes LastReported, and
	// recomputes the risk score.
	Upsert(ctx context.Context, key Key, evidence, notes string, verified bool) (*ScamReport, error)

	// ArchiveStale moves rows with LastReported before cutoff — except
	// verified rows scoring above 70 — to the archive table. Returns the
	// number of rows moved.
	ArchiveStale(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}
