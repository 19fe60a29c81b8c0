package session

import (
    "sync"

    "go.uber.org/zap"

    "netplayd/pkg/protocol"
)

// State is the lifecycle of one client connection. Transitions are monotonic:
// a connection never moves backwards.
type State int

const (
    StateCreated State = iota // ports claimed, no event stream yet
    StateReady                // event stream bound, client reported ready
    StatePlaying              // game started
    StateDone                 // finished or failed
)

func (s State) String() string {
    switch s {
    case StateCreated:
        return "created"
    case StateReady:
        return "ready"
    case StatePlaying:
        return "playing"
    case StateDone:
        return "done"
    default:
        return "unknown"
    }
}

// EventSink delivers events to one client. Implemented by the server's
// stream-backed sink and by test fakes.
type EventSink interface {
    Send(ev *protocol.Event) error
    Close() error
}

// Connection is one logical client inside a session. It is created by
// ClaimPorts and bound to an event stream later, when the anonymous stream
// identifies itself with a ready message.
type Connection struct {
    ID          int64
    SessionID   int64
    Ports       []protocol.Port // empty for spectators
    DelayFrames uint32

    mu    sync.Mutex
    state State
    sink  EventSink
}

func newConnection(id, sessionID int64, ports []protocol.Port, delayFrames uint32) *Connection {
    return &Connection{
        ID:          id,
        SessionID:   sessionID,
        Ports:       ports,
        DelayFrames: delayFrames,
        state:       StateCreated,
    }
}

func (c *Connection) State() State {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.state
}

// Bound reports whether the connection has an event stream attached.
func (c *Connection) Bound() bool {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.sink != nil
}

// Bind attaches an event sink and marks the connection ready. A rebind from
// a new stream replaces the previous sink; readiness only advances state the
// first time. Returns true if this bind performed the created->ready step.
func (c *Connection) Bind(sink EventSink) bool {
    c.mu.Lock()
    old := c.sink
    c.sink = sink
    first := c.state == StateCreated
    if first { c.state = StateReady }
    c.mu.Unlock()

    if old != nil && old != sink {
        if err := old.Close(); err != nil {
            zap.L().Debug("closing replaced event sink", zap.Error(err))
        }
    }
    return first
}

// Send delivers an event to the bound sink. Calling Send on an unbound
// connection is a caller bug: relay paths must check Bound or hold the
// readiness barrier first.
func (c *Connection) Send(ev *protocol.Event) error {
    c.mu.Lock()
    sink := c.sink
    c.mu.Unlock()
    if sink == nil {
        zap.L().Panic("send on unbound connection",
            zap.Int64("session", c.SessionID), zap.Int64("conn", c.ID))
    }
    return sink.Send(ev)
}

// advance moves the state forward; backwards transitions are ignored.
func (c *Connection) advance(to State) {
    c.mu.Lock()
    defer c.mu.Unlock()
    if to > c.state { c.state = to }
}

// Complete marks the connection done and closes its sink if bound.
func (c *Connection) Complete() {
    c.mu.Lock()
    done := c.state == StateDone
    c.state = StateDone
    sink := c.sink
    c.sink = nil
    c.mu.Unlock()
    if done || sink == nil { return }
    if err := sink.Close(); err != nil {
        zap.L().Debug("closing event sink", zap.Error(err))
    }
}

// Fail marks the connection done after a delivery or stream error.
func (c *Connection) Fail(err error) {
    zap.L().Warn("connection failed",
        zap.Int64("session", c.SessionID), zap.Int64("conn", c.ID), zap.Error(err))
    c.Complete()
}
