package session

import (
    "sync"
    "sync/atomic"

    "go.uber.org/zap"
)

// Registry owns all live sessions. When limit > 0 (test deployments) the
// registry is bounded by total creations over the process lifetime, never
// replenished by removal: a test run that creates more sessions than planned
// has leaked, and that is a fatal harness bug.
type Registry struct {
    limit  int
    nextID atomic.Int64

    mu       sync.Mutex
    sessions map[int64]*Session
}

func NewRegistry(limit int) *Registry {
    return &Registry{
        limit:    limit,
        sessions: make(map[int64]*Session),
    }
}

// Create allocates a session with a fresh id. Panics once a bounded registry
// has handed out its lifetime quota; session ids double as the creation count.
func (r *Registry) Create() *Session {
    id := r.nextID.Add(1)
    if r.limit > 0 && id > int64(r.limit) {
        zap.L().Panic("session creation quota exhausted",
            zap.Int("limit", r.limit), zap.Int64("created", id))
    }
    s := newSession(id)
    r.mu.Lock()
    r.sessions[id] = s
    r.mu.Unlock()
    zap.L().Info("session created", zap.Int64("session", id))
    return s
}

// Lookup returns the session or nil.
func (r *Registry) Lookup(id int64) *Session {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.sessions[id]
}

// Remove tears the session down and forgets it. Idempotent.
func (r *Registry) Remove(id int64) {
    r.mu.Lock()
    s := r.sessions[id]
    delete(r.sessions, id)
    r.mu.Unlock()
    if s == nil { return }
    s.Close()
    zap.L().Info("session removed", zap.Int64("session", id))
}

func (r *Registry) Len() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.sessions)
}
