package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scamshield/backend/internal/results"
)

// statusResponse is the wire shape of GET /agent-task/{task_id}/status.
type statusResponse struct {
	TaskID   string          `json:"task_id"`
	Status   string          `json:"status"`
	Result   *results.Record `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Progress int             `json:"progress,omitempty"`
}

// wireStatus maps stored statuses onto the client-facing vocabulary.
func wireStatus(stored string) string {
	switch stored {
	case results.StatusQueued:
		return "pending"
	case results.StatusRunning:
		return "processing"
	case results.StatusSucceeded:
		return "completed"
	case results.StatusFailed:
		return "failed"
	default:
		return stored
	}
}

// TaskStatus handles GET /agent-task/{task_id}/status.
func TaskStatus(store results.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := mux.Vars(r)["task_id"]

		rec, err := store.GetByTaskID(r.Context(), taskID)
		if errors.Is(err, results.ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := statusResponse{TaskID: taskID, Status: wireStatus(rec.Status)}
		switch rec.Status {
		case results.StatusSucceeded:
			resp.Result = rec
			resp.Progress = 100
		case results.StatusFailed:
			resp.Error = rec.ReasoningText
			resp.Progress = 100
		case results.StatusRunning:
			resp.Progress = 50
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
