package session

import (
    "errors"
    "fmt"
    "sort"
    "sync"

    "go.uber.org/zap"

    "netplayd/pkg/protocol"
)

// ErrNoPortsRequested is returned when a claim carries no usable port slots.
var ErrNoPortsRequested = errors.New("no ports requested")

// ErrClientsNotReady is returned when a start is attempted before every
// port-owning client has bound its event stream.
var ErrClientsNotReady = errors.New("clients not ready")

// RejectionError reports which requested ports could not be granted. The
// claim is all-or-nothing: if any slot is rejected, nothing is allocated.
type RejectionError struct {
    Rejections []protocol.Port
}

func (e *RejectionError) Error() string {
    return fmt.Sprintf("port request rejected: %v", e.Rejections)
}

// Session is one netplay game room: up to four controller ports plus any
// number of spectator connections.
type Session struct {
    ID int64

    mu         sync.Mutex
    ports      map[protocol.Port]*Connection
    conns      map[int64]*Connection
    nextConnID int64
}

func newSession(id int64) *Session {
    return &Session{
        ID:    id,
        ports: make(map[protocol.Port]*Connection),
        conns: make(map[int64]*Connection),
    }
}

// ClaimPorts allocates controller ports for one new client connection.
// Request slots are evaluated strictly in position order: a specific slot
// takes its named port, a PortAny slot takes the lowest port still free at
// that point. An earlier PortAny can therefore shadow a later specific
// request for the same port. All-or-nothing: any unsatisfiable slot rejects
// the whole claim, and the error carries the requested value of each
// rejected slot (the specific port, or PortAny).
func (s *Session) ClaimPorts(requested []protocol.Port, delayFrames uint32) (*Connection, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    taken := make(map[protocol.Port]bool, len(s.ports))
    for p := range s.ports { taken[p] = true }

    var granted []protocol.Port
    var rejected []protocol.Port
    slots := 0

    for _, p := range requested {
        switch {
        case p.Specific():
            slots++
            if taken[p] {
                rejected = append(rejected, p)
                continue
            }
            taken[p] = true
            granted = append(granted, p)
        case p == protocol.PortAny:
            slots++
            free := protocol.PortNone
            for q := protocol.Port1; q <= protocol.Port4; q++ {
                if !taken[q] {
                    free = q
                    break
                }
            }
            if free == protocol.PortNone {
                rejected = append(rejected, protocol.PortAny)
                continue
            }
            taken[free] = true
            granted = append(granted, free)
        }
    }
    if slots == 0 { return nil, ErrNoPortsRequested }
    if len(rejected) > 0 { return nil, &RejectionError{Rejections: rejected} }

    s.nextConnID++
    conn := newConnection(s.nextConnID, s.ID, granted, delayFrames)
    for _, p := range granted { s.ports[p] = conn }
    s.conns[conn.ID] = conn
    zap.L().Info("ports claimed",
        zap.Int64("session", s.ID), zap.Int64("conn", conn.ID),
        zap.Any("ports", granted), zap.Uint32("delay_frames", delayFrames))
    return conn, nil
}

// NewSpectator creates a port-less connection used to receive events only.
func (s *Session) NewSpectator() *Connection {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.nextConnID++
    conn := newConnection(s.nextConnID, s.ID, nil, 0)
    s.conns[conn.ID] = conn
    return conn
}

// ConnectionByID returns the connection or nil.
func (s *Session) ConnectionByID(id int64) *Connection {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.conns[id]
}

// ConnectedPorts lists claimed ports in ascending order.
func (s *Session) ConnectedPorts() []protocol.Port {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]protocol.Port, 0, len(s.ports))
    for p := range s.ports { out = append(out, p) }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

// VerifyClientsReady checks that every port-owning connection has passed its
// readiness declaration. The start barrier: a game must not begin while a
// claimed port still waits for its event stream. A finished connection is
// not a blocker. An empty session has nobody to play and is never ready.
func (s *Session) VerifyClientsReady() error {
    conns := s.portConnections()
    if len(conns) == 0 { return ErrClientsNotReady }
    for _, c := range conns {
        if c.State() == StateCreated { return ErrClientsNotReady }
    }
    return nil
}

// BroadcastStart moves every bound port-owning connection to playing and
// notifies it with the full connected-port list. Connections without a
// stream are left untouched. Delivery is best effort; a failed sink marks
// only that connection done.
func (s *Session) BroadcastStart() {
    ports := s.ConnectedPorts()
    notice := &protocol.Event{
        StartGame: &protocol.StartGameNotice{SessionID: s.ID, ConnectedPorts: ports},
    }
    for _, c := range s.portConnections() {
        if !c.Bound() { continue }
        c.advance(StatePlaying)
        if err := c.Send(notice); err != nil { c.Fail(err) }
    }
}

// RelayInput fans keypress frames out to every other bound port-owning
// connection. The sender never receives its own input back.
func (s *Session) RelayInput(from *Connection, keys []protocol.KeyState) {
    if len(keys) == 0 { return }
    ev := &protocol.Event{KeyPresses: keys}
    for _, c := range s.portConnections() {
        if c == from || !c.Bound() { continue }
        if err := c.Send(ev); err != nil { c.Fail(err) }
    }
}

// Close completes every connection in the session.
func (s *Session) Close() {
    s.mu.Lock()
    conns := make([]*Connection, 0, len(s.conns))
    for _, c := range s.conns { conns = append(conns, c) }
    s.mu.Unlock()
    for _, c := range conns { c.Complete() }
}

// portConnections snapshots the distinct port-owning connections in port order.
func (s *Session) portConnections() []*Connection {
    s.mu.Lock()
    defer s.mu.Unlock()
    seen := make(map[int64]bool, len(s.ports))
    out := make([]*Connection, 0, len(s.ports))
    for p := protocol.Port1; p <= protocol.Port4; p++ {
        c := s.ports[p]
        if c == nil || seen[c.ID] { continue }
        seen[c.ID] = true
        out = append(out, c)
    }
    return out
}
