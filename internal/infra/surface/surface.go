// Package surface provides the default toast and analytics surfaces.
// Both are fire-and-forget: the orchestration core never blocks on them,
// and analytics failures are swallowed.
package surface

import (
	"log"
	"sync"
)

// ─── Toasts ─────────────────────────────────────────────────────────────────

// ConsoleNotifier writes toasts to the process log. Used by the CLI and as
// the fallback when no live feed is attached.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Notify(userID, level, message string) {
	log.Printf("[toast] user=%s %s: %s", userID, level, message)
}

// Toast is one recorded user-visible message.
type Toast struct {
	UserID  string `json:"user_id"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// RecordingNotifier keeps the most recent toasts per user so the HTTP API
// can serve them to a reconnecting client.
type RecordingNotifier struct {
	mu     sync.Mutex
	max    int
	recent map[string][]Toast
}

// NewRecordingNotifier keeps up to max toasts per user.
func NewRecordingNotifier(max int) *RecordingNotifier {
	if max <= 0 {
		max = 20
	}
	return &RecordingNotifier{max: max, recent: make(map[string][]Toast)}
}

func (n *RecordingNotifier) Notify(userID, level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	list := append(n.recent[userID], Toast{UserID: userID, Level: level, Message: message})
	if len(list) > n.max {
		list = list[len(list)-n.max:]
	}
	n.recent[userID] = list
}

// Recent returns the recorded toasts for a user, oldest first.
func (n *RecordingNotifier) Recent(userID string) []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Toast, len(n.recent[userID]))
	copy(out, n.recent[userID])
	return out
}

// ─── Analytics ──────────────────────────────────────────────────────────────

// ConsoleAnalytics logs events. Errors cannot occur; a real backend
// implementation would swallow them the same way.
type ConsoleAnalytics struct{}

func (ConsoleAnalytics) Track(userID, event string, props map[string]string) {
	log.Printf("[analytics] user=%s event=%s props=%v", userID, event, props)
}

// MultiNotifier fans a toast out to several surfaces.
type MultiNotifier []interface {
	Notify(userID, level, message string)
}

func (m MultiNotifier) Notify(userID, level, message string) {
	for _, n := range m {
		n.Notify(userID, level, message)
	}
}
