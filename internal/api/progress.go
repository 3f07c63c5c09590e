package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/nutrigen/nutrigen/internal/app/progress"
)

// ─── Live Progress Feed ─────────────────────────────────────────────────────
// The generation loading screens subscribe here and receive every stepper
// snapshot as it advances. Delivered via Server-Sent Events for simplicity
// and HTTP/2 compatibility.

// ProgressEvent is one progress update on the wire.
type ProgressEvent struct {
	Type      string  `json:"type"` // "generation_progress"
	UserID    string  `json:"user_id"`
	StepID    string  `json:"step_id,omitempty"`
	Label     string  `json:"label,omitempty"`
	StepIndex int     `json:"step_index"`
	Progress  float64 `json:"progress"`
	Complete  bool    `json:"complete"`
	Timestamp int64   `json:"timestamp"`
}

// ProgressHub fans stepper snapshots out to connected SSE clients. Each
// client subscribes to a single user's feed.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[chan []byte]string // channel -> user ID filter
}

// NewProgressHub creates a new progress broadcast hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients: make(map[chan []byte]string),
	}
}

// Broadcast sends a stepper snapshot to every client watching the user.
func (h *ProgressHub) Broadcast(userID string, snap progress.Snapshot) {
	event := ProgressEvent{
		Type:      "generation_progress",
		UserID:    userID,
		StepID:    snap.StepID,
		Label:     snap.Label,
		StepIndex: snap.CurrentStepIndex,
		Progress:  snap.Progress,
		Complete:  snap.IsComplete,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, uid := range h.clients {
		if uid != userID {
			continue
		}
		select {
		case ch <- data:
		default:
			// Client too slow — drop message
		}
	}
}

// Subscribe registers a client for one user's feed. Returns the channel and
// an unsubscribe func.
func (h *ProgressHub) Subscribe(userID string) (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = userID
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleProgressSSE serves the live progress feed.
// GET /api/progress/live
func (h *ProgressHub) HandleProgressSSE(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ch, unsub := h.Subscribe(uid)
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-ch:
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
