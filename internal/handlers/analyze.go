// Package handlers exposes the HTTP ingress: analysis submission, task
// status, and agent health.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/scamshield/backend/internal/gate"
)

const maxMultipartMemory = 10 << 20 // 10MB; image parts are accepted but unused

// Analyze handles POST /api/v1/analyze. Multipart fields: ocr_text
// (required), session_id (optional), image (optional, ignored — OCR happens
// on-device).
func Analyze(g *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			// Fall back to urlencoded form bodies.
			if err := r.ParseForm(); err != nil {
				http.Error(w, "unparseable request body", http.StatusBadRequest)
				return
			}
		}

		ocrText := strings.TrimSpace(r.FormValue("ocr_text"))
		if ocrText == "" {
			http.Error(w, "ocr_text is required", http.StatusBadRequest)
			return
		}
		sessionID := r.FormValue("session_id")

		resp, err := g.Route(r.Context(), ocrText, sessionID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
