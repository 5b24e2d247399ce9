package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/scamshield/backend/internal/infra"
)

const (
	heartbeatPeriod = 15 * time.Second
	idleTimeout     = 60 * time.Second
	writeWait       = 10 * time.Second
	sendBuffer      = 64
)

// Upgrader with origin validation: in production only origins listed in
// ALLOWED_ORIGINS are accepted, otherwise all origins pass.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     buildCheckOrigin(),
}

func buildCheckOrigin() func(r *http.Request) bool {
	env := os.Getenv("APP_ENV")
	allowedRaw := os.Getenv("ALLOWED_ORIGINS")

	if env == "production" && allowedRaw != "" {
		allowed := make(map[string]bool)
		for _, origin := range strings.Split(allowedRaw, ",") {
			allowed[strings.TrimSpace(origin)] = true
		}
		slog.Info("[Progress] Origin allowlist active", "count", len(allowed))
		return func(r *http.Request) bool {
			return allowed[r.Header.Get("Origin")]
		}
	}
	return func(r *http.Request) bool { return true }
}

// session bridges one WebSocket client to a task's progress channel. The
// writePump is the only goroutine writing to the connection.
type session struct {
	taskID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

// Handler returns the mux handler for GET /ws/agent-progress/{task_id}.
func Handler(bus infra.PubSub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := mux.Vars(r)["task_id"]
		if taskID == "" {
			http.Error(w, "task_id required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("[Progress] WebSocket upgrade failed", "error", err)
			return
		}

		s := &session{
			taskID: taskID,
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			done:   make(chan struct{}),
		}

		// The subscription outlives the handler (the connection is hijacked),
		// so its lifetime is managed by unsubscribe, not the request context.
		unsubscribe, err := bus.Subscribe(context.Background(), ChannelFor(taskID), s.onEvent)
		if err != nil {
			slog.Warn("[Progress] Subscribe failed", "task_id", taskID, "error", err)
			conn.Close()
			return
		}

		slog.Info("[Progress] Client connected", "task_id", taskID)
		go s.writePump(unsubscribe)
		go s.readPump()

		s.enqueue(mustJSON(NewMessage(taskID, StepConnected, 0)))
	}
}

// onEvent forwards a pub/sub payload to the client. Malformed payloads are
// dropped; terminal steps close the session after the final frame flushes.
func (s *session) onEvent(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		slog.Debug("[Progress] Dropping malformed event", "task_id", s.taskID)
		return
	}
	s.enqueue(data)
	if msg.Step.Terminal() {
		// Give the writePump a moment to flush, then close.
		go func() {
			time.Sleep(200 * time.Millisecond)
			s.close()
		}()
	}
}

func (s *session) enqueue(data []byte) {
	select {
	case s.send <- data:
	default:
		slog.Warn("[Progress] Send buffer full, dropping event", "task_id", s.taskID)
	}
}

// writePump serializes all writes: progress frames, heartbeats, close frames.
// The idle timer closes abandoned streams whose task never reports.
func (s *session) writePump(unsubscribe func()) {
	heartbeat := time.NewTicker(heartbeatPeriod)
	idle := time.NewTimer(idleTimeout)
	defer func() {
		heartbeat.Stop()
		idle.Stop()
		unsubscribe()
		s.close()
	}()

	for {
		select {
		case data := <-s.send:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(idleTimeout)
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-heartbeat.C:
			hb := NewMessage(s.taskID, StepConnected, 0)
			hb.Heartbeat = true
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, mustJSON(hb)); err != nil {
				return
			}
		case <-idle.C:
			slog.Info("[Progress] Closing idle stream", "task_id", s.taskID)
			return
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump drains client frames so close handshakes and pings are processed.
// Clients do not send application data on this stream.
func (s *session) readPump() {
	defer s.close()
	s.conn.SetReadLimit(4096)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		// Delayed close lets writePump emit the close frame first.
		time.AfterFunc(writeWait, func() { s.conn.Close() })
	})
}

func mustJSON(m Message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return data
}
