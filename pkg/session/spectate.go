package session

import (
    "errors"
    "sync"

    "go.uber.org/zap"

    "netplayd/pkg/protocol"
)

// ErrNotSpectatable is returned when spectating is disabled or the spectator
// connection is past the point where it may register.
var ErrNotSpectatable = errors.New("session not spectatable")

// Hub fans live input out to spectator connections. Spectators live in their
// own sessions; the hub indexes them by the session they watch.
type Hub struct {
    enabled bool

    mu         sync.Mutex
    spectators map[int64][]*Connection
}

func NewHub(enabled bool) *Hub {
    return &Hub{
        enabled:    enabled,
        spectators: make(map[int64][]*Connection),
    }
}

// AddSpectator registers conn to watch the target session. Registration is
// only allowed before the spectator binds its event stream; a duplicate
// registration is a no-op.
func (h *Hub) AddSpectator(targetID int64, conn *Connection) error {
    if !h.enabled { return ErrNotSpectatable }
    if conn.State() != StateCreated { return ErrNotSpectatable }

    h.mu.Lock()
    defer h.mu.Unlock()
    for _, c := range h.spectators[targetID] {
        if c == conn { return nil }
    }
    h.spectators[targetID] = append(h.spectators[targetID], conn)
    zap.L().Info("spectator registered",
        zap.Int64("target", targetID),
        zap.Int64("session", conn.SessionID), zap.Int64("conn", conn.ID))
    return nil
}

// RelayKeys delivers each key frame as its own event to every bound
// spectator of the target session. Best effort: a dead spectator is marked
// done and skipped thereafter.
func (h *Hub) RelayKeys(targetID int64, keys []protocol.KeyState) {
    if !h.enabled || len(keys) == 0 { return }
    h.mu.Lock()
    watchers := append([]*Connection(nil), h.spectators[targetID]...)
    h.mu.Unlock()
    if len(watchers) == 0 { return }

    for _, k := range keys {
        ev := &protocol.Event{KeyPresses: []protocol.KeyState{k}}
        for _, c := range watchers {
            if c.State() == StateDone || !c.Bound() { continue }
            if err := c.Send(ev); err != nil { c.Fail(err) }
        }
    }
}

// Remove drops every spectator watching the target session, and also drops
// any spectator connections that belong to it.
func (h *Hub) Remove(sessionID int64) {
    h.mu.Lock()
    defer h.mu.Unlock()
    delete(h.spectators, sessionID)
    for target, list := range h.spectators {
        kept := list[:0]
        for _, c := range list {
            if c.SessionID != sessionID { kept = append(kept, c) }
        }
        if len(kept) == 0 {
            delete(h.spectators, target)
        } else {
            h.spectators[target] = kept
        }
    }
}
