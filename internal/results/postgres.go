package results

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists scan results in agent_scan_results; see
// scripts/schema.sql for the unique task_id index and GIN indexes on the
// JSONB columns.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a pool against databaseURL and pings it.
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

	slog.Info("[Results] Postgres connected")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const resultColumns = `id, task_id, COALESCE(session_id, ''), status, entities_found,
	COALESCE(entities, 'null'), COALESCE(evidence, 'null'), COALESCE(risk_level, ''),
	confidence, COALESCE(reasoning_text, ''), COALESCE(reasoning_method, ''),
	tools_used, processing_time_ms, created_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var entities, evidence []byte
	if err := row.Scan(&r.ID, &r.TaskID, &r.SessionID, &r.Status, &r.EntitiesFound,
		&entities, &evidence, &r.RiskLevel, &r.Confidence, &r.ReasoningText,
		&r.ReasoningMethod, pq.Array(&r.ToolsUsed), &r.ProcessingTimeMS,
		&r.CreatedAt); err != nil {
		return nil, err
	}
	if string(entities) != "null" {
		r.Entities = entities
	}
	if string(evidence) != "null" {
		r.Evidence = evidence
	}
	return &r, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_scan_results
		   (task_id, session_id, status, entities_found, entities, evidence,
		    risk_level, confidence, reasoning_text, reasoning_method,
		    tools_used, processing_time_ms, created_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), $8,
		         NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)
		 ON CONFLICT (task_id) DO UPDATE SET
		   status             = EXCLUDED.status,
		   entities_found     = EXCLUDED.entities_found,
		   entities           = EXCLUDED.entities,
		   evidence           = EXCLUDED.evidence,
		   risk_level         = EXCLUDED.risk_level,
		   confidence         = EXCLUDED.confidence,
		   reasoning_text     = EXCLUDED.reasoning_text,
		   reasoning_method   = EXCLUDED.reasoning_method,
		   tools_used         = EXCLUDED.tools_used,
		   processing_time_ms = EXCLUDED.processing_time_ms`,
		rec.TaskID, rec.SessionID, rec.Status, rec.EntitiesFound,
		nullableJSON(rec.Entities), nullableJSON(rec.Evidence), rec.RiskLevel,
		rec.Confidence, rec.ReasoningText, rec.ReasoningMethod,
		pq.Array(rec.ToolsUsed), rec.ProcessingTimeMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("results save: %w", err)
	}
	return nil
}

// MarkStatus creates the stub row on first transition so the status endpoint
// can answer for queued tasks before any result exists.
func (s *PostgresStore) MarkStatus(ctx context.Context, taskID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_scan_results (task_id, status, entities_found, confidence,
		    tools_used, processing_time_ms, created_at)
		 VALUES ($1, $2, 0, 0, '{}', 0, $3)
		 ON CONFLICT (task_id) DO UPDATE SET status = EXCLUDED.status`,
		taskID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("results mark status: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByTaskID(ctx context.Context, taskID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM agent_scan_results WHERE task_id = $1`, taskID)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("results lookup: %w", err)
	}
	return r, nil
}

// PurgeOlderThan enforces the retention window.
func (s *PostgresStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agent_scan_results WHERE created_at < $1`,
		time.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("results purge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info("[Results] Purged expired results", "count", n)
	}
	return n, nil
}

// nullableJSON passes JSONB parameters as text; lib/pq would otherwise encode
// a []byte as bytea.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
