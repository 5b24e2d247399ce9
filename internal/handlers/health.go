package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/scamshield/backend/internal/infra"
	"github.com/scamshield/backend/internal/queue"
)

type healthResponse struct {
	Status       string `json:"status"`
	AgentEnabled bool   `json:"agent_enabled"`
	WorkersAlive bool   `json:"workers_active"`
	ActiveTasks  int    `json:"active_tasks"`
	Timestamp    string `json:"timestamp"`
}

// AgentHealth handles GET /health/agent. Responds 503 when the agent is
// enabled but no worker heartbeat is live. activeTasks may be nil when the
// process does not embed a worker pool.
func AgentHealth(enabled bool, kv infra.KV, activeTasks func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alive := queue.WorkerAvailable(r.Context(), kv)

		resp := healthResponse{
			Status:       "ok",
			AgentEnabled: enabled,
			WorkersAlive: alive,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}
		if activeTasks != nil {
			resp.ActiveTasks = activeTasks()
		}

		code := http.StatusOK
		if enabled && !alive {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	}
}
