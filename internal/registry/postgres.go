package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PostgresStore backs the registry with Postgres. The composite unique index
// on (entity_type, entity_value) makes concurrent upserts converge on a
// single row; see scripts/schema.sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against databaseURL and verifies
// connectivity with a short ping.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	slog.Info("[Registry] Postgres connected")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const reportColumns = `id, entity_type, entity_value, report_count, risk_score,
	first_seen, last_reported, evidence, verified, COALESCE(notes, ''), created_at, updated_at`

func scanReport(row interface{ Scan(...any) error }) (*ScamReport, error) {
	var r ScamReport
	if err := row.Scan(&r.ID, &r.EntityType, &r.EntityValue, &r.ReportCount,
		&r.RiskScore, &r.FirstSeen, &r.LastReported, pq.Array(&r.Evidence),
		&r.Verified, &r.Notes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) Lookup(ctx context.Context, key Key) (*ScamReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM scam_reports
		 WHERE entity_type = $1 AND entity_value = $2`, key.Type, key.Value)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry lookup: %w", err)
	}
	return r, nil
}

// LookupBulk resolves all keys with one round trip. The unnest join keeps the
// bare columns on the left side so the composite index stays usable.
func (s *PostgresStore) LookupBulk(ctx context.Context, keys []Key) (map[Key]*ScamReport, error) {
	if len(keys) == 0 {
		return map[Key]*ScamReport{}, nil
	}
	types := make([]string, len(keys))
	values := make([]string, len(keys))
	for i, k := range keys {
		types[i] = k.Type
		values[i] = k.Value
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.entity_type, r.entity_value, r.report_count, r.risk_score,
		        r.first_seen, r.last_reported, r.evidence, r.verified,
		        COALESCE(r.notes, ''), r.created_at, r.updated_at
		 FROM scam_reports r
		 JOIN unnest($1::text[], $2::text[]) AS k(entity_type, entity_value)
		   ON r.entity_type = k.entity_type AND r.entity_value = k.entity_value`,
		pq.Array(types), pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("registry bulk lookup: %w", err)
	}
	defer rows.Close()

	out := make(map[Key]*ScamReport, len(keys))
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("registry bulk scan: %w", err)
		}
		out[Key{Type: r.EntityType, Value: r.EntityValue}] = r
	}
	return out, rows.Err()
}

// Upsert relies on ON CONFLICT to make concurrent duplicate inserts converge
// into count increments. The risk score is recomputed in application code and
// written back in a second statement keyed by row id.
func (s *PostgresStore) Upsert(ctx context.Context, key Key, evidence, notes string, verified bool) (*ScamReport, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO scam_reports
		   (entity_type, entity_value, report_count, risk_score, first_seen,
		    last_reported, evidence, verified, notes, created_at, updated_at)
		 VALUES ($1, $2, 1, 0, $3, $3, ARRAY[$4], $5, NULLIF($6, ''), $3, $3)
		 ON CONFLICT (entity_type, entity_value) DO UPDATE SET
		   report_count  = scam_reports.report_count + 1,
		   evidence      = array_append(scam_reports.evidence, $4),
		   last_reported = $3,
		   verified      = scam_reports.verified OR $5,
		   notes         = COALESCE(NULLIF($6, ''), scam_reports.notes),
		   updated_at    = $3
		 RETURNING `+reportColumns,
		key.Type, key.Value, now, evidence, verified, notes)

	r, err := scanReport(row)
	if err != nil {
		return nil, fmt.Errorf("registry upsert: %w", err)
	}

	r.RiskScore = RiskScore(r.ReportCount, r.Verified, r.LastReported, r.Evidence, now)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE scam_reports SET risk_score = $1 WHERE id = $2`, r.RiskScore, r.ID); err != nil {
		return nil, fmt.Errorf("registry risk update: %w", err)
	}
	return r, nil
}

// ArchiveStale moves expired rows into archived_scam_reports in one statement
// so a crash mid-sweep cannot drop rows.
func (s *PostgresStore) ArchiveStale(ctx context.Context, cutoff time.Time) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`WITH moved AS (
		   DELETE FROM scam_reports
		   WHERE last_reported < $1 AND NOT (verified AND risk_score > 70)
		   RETURNING *
		 ), inserted AS (
		   INSERT INTO archived_scam_reports SELECT * FROM moved RETURNING 1
		 )
		 SELECT COUNT(*) FROM inserted`, cutoff)

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("registry archive: %w", err)
	}
	if n > 0 {
		slog.Info("[Registry] Archived stale reports", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
