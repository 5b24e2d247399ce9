package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamshield/backend/internal/entities"
	"github.com/scamshield/backend/internal/gate"
	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/llm"
	"github.com/scamshield/backend/internal/queue"
	"github.com/scamshield/backend/internal/results"
)

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func newAnalyzeHandler(t *testing.T, workerAlive bool) (http.HandlerFunc, *results.MemoryStore) {
	t.Helper()
	kv := infra.NewMemoryKV()
	if workerAlive {
		require.NoError(t, kv.Set(context.Background(), "agent:workers:alive", []byte("1"), time.Minute))
	}
	store := results.NewMemoryStore()
	g := gate.New(true,
		entities.NewExtractor(entities.Options{}),
		llm.NewClassifier(nil),
		queue.NewBroker(infra.NewMemoryQueue()),
		kv, store, nil)
	return Analyze(g), store
}

func TestAnalyzeAgentResponse(t *testing.T) {
	handler, store := newAnalyzeHandler(t, true)
	body, contentType := multipartBody(t, map[string]string{
		"ocr_text":   "Call 1-800-000-0000 now",
		"session_id": "sess-9",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp gate.AgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "agent", resp.Type)
	assert.NotEmpty(t, resp.TaskID)

	stub, err := store.GetByTaskID(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, results.StatusQueued, stub.Status)
}

func TestAnalyzeSimpleResponse(t *testing.T) {
	handler, _ := newAnalyzeHandler(t, false)
	body, contentType := multipartBody(t, map[string]string{"ocr_text": "Hi Mom, dinner at 7?"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp gate.SimpleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "simple", resp.Type)
	assert.Equal(t, "low", resp.Result.RiskLevel)
}

func TestAnalyzeMissingText(t *testing.T) {
	handler, _ := newAnalyzeHandler(t, false)
	body, contentType := multipartBody(t, map[string]string{"session_id": "s"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func statusRequest(t *testing.T, store results.Store, taskID string) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/agent-task/{task_id}/status", TaskStatus(store))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agent-task/"+taskID+"/status", nil))
	return rec
}

func TestTaskStatusLifecycle(t *testing.T) {
	store := results.NewMemoryStore()
	ctx := context.Background()

	rec := statusRequest(t, store, "missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, store.MarkStatus(ctx, "t1", results.StatusQueued))
	var resp statusResponse
	require.NoError(t, json.Unmarshal(statusRequest(t, store, "t1").Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)

	require.NoError(t, store.Save(ctx, &results.Record{
		TaskID: "t1", Status: results.StatusSucceeded, RiskLevel: "high", Confidence: 85,
	}))
	require.NoError(t, json.Unmarshal(statusRequest(t, store, "t1").Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "high", resp.Result.RiskLevel)
	assert.Equal(t, 100, resp.Progress)
}

func TestTaskStatusFailedCarriesError(t *testing.T) {
	store := results.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &results.Record{
		TaskID: "t2", Status: results.StatusFailed, ReasoningText: "timeout",
	}))

	var resp statusResponse
	require.NoError(t, json.Unmarshal(statusRequest(t, store, "t2").Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "timeout", resp.Error)
}

func TestAgentHealth(t *testing.T) {
	kv := infra.NewMemoryKV()
	handler := AgentHealth(true, kv, func() int { return 3 })

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/agent", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no heartbeat means degraded")

	require.NoError(t, kv.Set(context.Background(), "agent:workers:alive", []byte("1"), time.Minute))
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/agent", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.AgentEnabled)
	assert.True(t, resp.WorkersAlive)
	assert.Equal(t, 3, resp.ActiveTasks)
}

func TestAgentHealthDisabledIsOK(t *testing.T) {
	handler := AgentHealth(false, infra.NewMemoryKV(), nil)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health/agent", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
