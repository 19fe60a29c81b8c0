package transport

import (
    "sync"

    "go.uber.org/zap"
)

// Tracker keeps tabs on live inbound sessions so the server can close them
// all on shutdown. Sessions remove themselves when their serve loop exits.
type Tracker struct {
    mu       sync.Mutex
    sessions map[Session]struct{}
    closed   bool
}

func NewTracker() *Tracker {
    return &Tracker{sessions: make(map[Session]struct{})}
}

// Add registers a live session. Returns false if the tracker is already
// closed; the caller should close the session itself in that case.
func (t *Tracker) Add(s Session) bool {
    t.mu.Lock()
    defer t.mu.Unlock()
    if t.closed { return false }
    t.sessions[s] = struct{}{}
    return true
}

func (t *Tracker) Remove(s Session) {
    t.mu.Lock()
    defer t.mu.Unlock()
    delete(t.sessions, s)
}

func (t *Tracker) Len() int {
    t.mu.Lock()
    defer t.mu.Unlock()
    return len(t.sessions)
}

// CloseAll closes every tracked session and marks the tracker closed.
// Subsequent Add calls fail.
func (t *Tracker) CloseAll() {
    t.mu.Lock()
    t.closed = true
    victims := make([]Session, 0, len(t.sessions))
    for s := range t.sessions { victims = append(victims, s) }
    t.sessions = make(map[Session]struct{})
    t.mu.Unlock()

    for _, s := range victims {
        if err := s.Close(); err != nil {
            zap.L().Debug("session close during shutdown", zap.Error(err))
        }
    }
}
