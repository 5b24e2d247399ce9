package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/scamshield/backend/internal/infra"
)

const costKeyPrefix = "websearch:cost:"

// CostMeter tracks daily spend against a hard budget. The counter lives in
// the shared KV keyed by UTC day, so all workers share one budget; the key's
// TTL resets it at (or shortly after) UTC midnight.
type CostMeter struct {
	kv             infra.KV
	pricePerSearch float64
	dailyBudget    float64

	// exhausted is a process-local operational flag surfaced on /health.
	exhausted atomic.Bool
}

// NewCostMeter creates a meter. price and budget are USD.
func NewCostMeter(kv infra.KV, pricePerSearch, dailyBudget float64) *CostMeter {
	return &CostMeter{kv: kv, pricePerSearch: pricePerSearch, dailyBudget: dailyBudget}
}

func dayKey(now time.Time) string {
	return costKeyPrefix + now.UTC().Format("2006-01-02")
}

// Allow reports whether another paid search fits the day's budget. Errors
// reading the counter fail open: a broken meter must not silence the tool.
func (m *CostMeter) Allow(ctx context.Context) bool {
	raw, err := m.kv.Get(ctx, dayKey(time.Now()))
	if err != nil {
		slog.Warn("[WebSearch] Cost meter read failed, allowing", "error", err)
		return true
	}
	if raw == nil {
		m.exhausted.Store(false)
		return true
	}
	spent, _ := strconv.ParseFloat(string(raw), 64)
	ok := spent < m.dailyBudget
	m.exhausted.Store(!ok)
	return ok
}

// Charge records one paid search after a successful API call. The per-type
// counter keeps an audit trail of what the budget went to.
func (m *CostMeter) Charge(ctx context.Context, entityType string) error {
	now := time.Now()
	key := dayKey(now)

	total, err := m.kv.IncrByFloat(ctx, key, m.pricePerSearch)
	if err != nil {
		return fmt.Errorf("cost increment: %w", err)
	}
	// First increment of the day sets the TTL; ExpireNX makes retries benign.
	if err := m.kv.ExpireNX(ctx, key, untilNextUTCMidnight(now)+time.Hour); err != nil {
		slog.Warn("[WebSearch] Cost key TTL set failed", "error", err)
	}

	typeKey := key + ":" + entityType
	if _, err := m.kv.IncrBy(ctx, typeKey, 1); err == nil {
		_ = m.kv.ExpireNX(ctx, typeKey, untilNextUTCMidnight(now)+time.Hour)
	}

	if total >= m.dailyBudget {
		m.exhausted.Store(true)
		slog.Warn("[WebSearch] Daily budget reached", "spent", total, "budget", m.dailyBudget)
	}
	return nil
}

// Exhausted reports whether the last budget check hit the cap.
func (m *CostMeter) Exhausted() bool { return m.exhausted.Load() }

func untilNextUTCMidnight(now time.Time) time.Duration {
	utc := now.UTC()
	next := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next.Sub(utc)
}
