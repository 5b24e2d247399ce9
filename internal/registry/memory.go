package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process registry backend used when Postgres is not
// configured, and by tests. Same semantics as PostgresStore, no persistence.
type MemoryStore struct {
	mu       sync.RWMutex
	rows     map[Key]*ScamReport
	archived map[Key]*ScamReport
	nextID   int64
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:     make(map[Key]*ScamReport),
		archived: make(map[Key]*ScamReport),
		nextID:   1,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Lookup(_ context.Context, key Key) (*ScamReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[key]
	if !ok {
		return nil, nil
	}
	cp := *r
	cp.Evidence = append([]string(nil), r.Evidence...)
	return &cp, nil
}

func (s *MemoryStore) LookupBulk(ctx context.Context, keys []Key) (map[Key]*ScamReport, error) {
	out := make(map[Key]*ScamReport, len(keys))
	for _, k := range keys {
		r, err := s.Lookup(ctx, k)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out[k] = r
		}
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, key Key, evidence, notes string, verified bool) (*ScamReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	r, ok := s.rows[key]
	if !ok {
		r = &ScamReport{
			ID:          s.nextID,
			EntityType:  key.Type,
			EntityValue: key.Value,
			ReportCount: 0,
			FirstSeen:   now,
			CreatedAt:   now,
		}
		s.nextID++
		s.rows[key] = r
	}

	r.ReportCount++
	r.Evidence = append(r.Evidence, evidence)
	r.LastReported = now
	r.UpdatedAt = now
	r.Verified = r.Verified || verified
	if notes != "" {
		r.Notes = notes
	}
	r.RiskScore = RiskScore(r.ReportCount, r.Verified, r.LastReported, r.Evidence, now)

	cp := *r
	cp.Evidence = append([]string(nil), r.Evidence...)
	return &cp, nil
}

func (s *MemoryStore) ArchiveStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for k, r := range s.rows {
		if r.LastReported.Before(cutoff) && !(r.Verified && r.RiskScore > 70) {
			s.archived[k] = r
			delete(s.rows, k)
			moved++
		}
	}
	return moved, nil
}

// Seed installs a fully-specified report, bypassing upsert semantics.
// Test helper.
func (s *MemoryStore) Seed(r ScamReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.nextID
		s.nextID++
	}
	s.rows[Key{Type: r.EntityType, Value: r.EntityValue}] = &r
}
