package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamshield/backend/internal/entities"
)

func newTestTool() (*Tool, *MemoryStore) {
	store := NewMemoryStore()
	return NewTool(store, "US"), store
}

func TestCheckPhoneNormalizes(t *testing.T) {
	tool, store := newTestTool()
	store.Seed(ScamReport{
		EntityType:   EntityPhone,
		EntityValue:  "+18005551234",
		ReportCount:  47,
		RiskScore:    85,
		Verified:     true,
		LastReported: time.Now(),
	})

	// Raw formatting must hit the same E.164 key.
	res, err := tool.CheckPhone(context.Background(), "+1 (800) 555-1234")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.True(t, res.Verified)
	assert.Equal(t, 47, res.ReportCount)
}

func TestCheckURLUsesRegistrableDomain(t *testing.T) {
	tool, store := newTestTool()
	store.Seed(ScamReport{EntityType: EntityURL, EntityValue: "evil.tk", ReportCount: 3})

	res, err := tool.CheckURL(context.Background(), "https://login.evil.tk/verify?x=1")
	require.NoError(t, err)
	assert.True(t, res.Found)

	miss, err := tool.CheckURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.False(t, miss.Found)
}

func TestCheckEmailLowercases(t *testing.T) {
	tool, store := newTestTool()
	store.Seed(ScamReport{EntityType: EntityEmail, EntityValue: "scam@evil.com", ReportCount: 2})

	res, err := tool.CheckEmail(context.Background(), "Scam@Evil.COM")
	require.NoError(t, err)
	assert.True(t, res.Found)
}

func TestCheckPaymentKinds(t *testing.T) {
	tool, store := newTestTool()
	store.Seed(ScamReport{EntityType: EntityBitcoin, EntityValue: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", ReportCount: 9})

	res, err := tool.CheckPayment(context.Background(), "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", entities.PaymentBitcoin)
	require.NoError(t, err)
	assert.True(t, res.Found)

	miss, err := tool.CheckPayment(context.Background(), "$handle", entities.PaymentCashApp)
	require.NoError(t, err)
	assert.False(t, miss.Found)
}

func TestCheckBulkAlignment(t *testing.T) {
	tool, store := newTestTool()
	store.Seed(ScamReport{EntityType: EntityPhone, EntityValue: "+18005551234", ReportCount: 5})

	batch := []BulkEntity{
		{Type: EntityPhone, Value: "1-800-555-1234"},
		{Type: EntityEmail, Value: "missing@example.com"},
		{Type: EntityPhone, Value: "+18005551234"}, // duplicate of slot 0
		{Type: EntityPhone, Value: "garbage"},
	}
	out, err := tool.CheckBulk(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.True(t, out[0].Found)
	assert.False(t, out[1].Found)
	assert.True(t, out[2].Found)
	assert.Equal(t, out[0].EntityValue, out[2].EntityValue)
	assert.False(t, out[3].Found)
}

func TestAddReportUpsert(t *testing.T) {
	tool, _ := newTestTool()
	ctx := context.Background()

	first, err := tool.AddReport(ctx, EntityEmail, "Bad@Actor.com", "user: spam", "")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ReportCount)
	assert.Equal(t, "bad@actor.com", first.EntityValue)

	second, err := tool.AddReport(ctx, EntityEmail, "bad@actor.com", "ftc: complaint", "note")
	require.NoError(t, err)
	assert.Equal(t, 2, second.ReportCount)
	assert.Len(t, second.Evidence, 2)
	assert.GreaterOrEqual(t, second.RiskScore, first.RiskScore)
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
}

func TestConcurrentUpsert(t *testing.T) {
	tool, _ := newTestTool()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tool.AddReport(ctx, EntityPhone, "+18005550000", "user: dup", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	res, err := tool.CheckPhone(ctx, "+18005550000")
	require.NoError(t, err)
	assert.Equal(t, n, res.ReportCount)
	assert.Len(t, res.Evidence, n)
}

func TestArchiveStaleKeepsVerifiedHighRisk(t *testing.T) {
	_, store := newTestTool()
	old := time.Now().Add(-400 * 24 * time.Hour)

	store.Seed(ScamReport{EntityType: EntityURL, EntityValue: "old.com", RiskScore: 40, LastReported: old})
	store.Seed(ScamReport{EntityType: EntityURL, EntityValue: "kept.com", RiskScore: 90, Verified: true, LastReported: old})
	store.Seed(ScamReport{EntityType: EntityURL, EntityValue: "fresh.com", RiskScore: 40, LastReported: time.Now()})

	moved, err := store.ArchiveStale(context.Background(), time.Now().Add(-365*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	kept, _ := store.Lookup(context.Background(), Key{Type: EntityURL, Value: "kept.com"})
	assert.NotNil(t, kept)
	gone, _ := store.Lookup(context.Background(), Key{Type: EntityURL, Value: "old.com"})
	assert.Nil(t, gone)
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "evil.tk", RegistrableDomain("https://login.evil.tk/path"))
	assert.Equal(t, "example.com", RegistrableDomain("sub.example.com:8443/x"))
	assert.Equal(t, "example.co.uk", RegistrableDomain("a.b.example.co.uk"))
}
