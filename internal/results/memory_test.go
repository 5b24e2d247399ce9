package results

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := &Record{
		TaskID:           "t1",
		SessionID:        "s1",
		Status:           StatusSucceeded,
		EntitiesFound:    2,
		Entities:         json.RawMessage(`{"phones":["+18005551234"]}`),
		RiskLevel:        "medium",
		Confidence:       55,
		ReasoningText:    "two signals",
		ReasoningMethod:  "heuristic",
		ToolsUsed:        []string{"scam_registry", "web_search"},
		ProcessingTimeMS: 1234,
	}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.GetByTaskID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, "medium", got.RiskLevel)
	assert.JSONEq(t, `{"phones":["+18005551234"]}`, string(got.Entities))
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetByTaskID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveUpsertsOnTaskID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Record{TaskID: "t1", Status: StatusRunning}))
	first, _ := s.GetByTaskID(ctx, "t1")

	require.NoError(t, s.Save(ctx, &Record{TaskID: "t1", Status: StatusSucceeded, RiskLevel: "high"}))
	second, err := s.GetByTaskID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same task keeps the same row")
	assert.Equal(t, StatusSucceeded, second.Status)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestMarkStatusCreatesStub(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.MarkStatus(ctx, "t2", StatusQueued))
	got, err := s.GetByTaskID(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)

	require.NoError(t, s.MarkStatus(ctx, "t2", StatusRunning))
	got, _ = s.GetByTaskID(ctx, "t2")
	assert.Equal(t, StatusRunning, got.Status)
}

func TestPurgeOlderThan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	s.SetNow(func() time.Time { return base.Add(-8 * 24 * time.Hour) })
	require.NoError(t, s.Save(ctx, &Record{TaskID: "old"}))

	s.SetNow(func() time.Time { return base })
	require.NoError(t, s.Save(ctx, &Record{TaskID: "fresh"}))

	n, err := s.PurgeOlderThan(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetByTaskID(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByTaskID(ctx, "fresh")
	assert.NoError(t, err)
}
