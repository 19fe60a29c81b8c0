package server

import (
    "errors"
    "testing"

    "netplayd/pkg/protocol"
    "netplayd/pkg/session"
)

// testSink records events delivered to one fake client stream.
type testSink struct {
    events []*protocol.Event
    closed bool
    err    error
}

func (s *testSink) Send(ev *protocol.Event) error {
    if s.err != nil { return s.err }
    s.events = append(s.events, ev)
    return nil
}

func (s *testSink) Close() error {
    s.closed = true
    return nil
}

func newTestWorld(t *testing.T) (*session.Registry, *session.Hub) {
    t.Helper()
    return session.NewRegistry(0), session.NewHub(true)
}

func TestBinderRejectsUnknownSession(t *testing.T) {
    reg, hub := newTestWorld(t)
    sink := &testSink{}
    b := NewStreamBinder(reg, hub, sink)

    err := b.OnEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: 99, ConnectionID: 1}})
    if !errors.Is(err, errStreamDone) { t.Fatalf("want errStreamDone, got %v", err) }
    if len(sink.events) != 1 || len(sink.events[0].Invalid) != 1 {
        t.Fatalf("want one invalid-data event, got %#v", sink.events)
    }
    if sink.events[0].Invalid[0].Status != protocol.StatusNoSuchSession {
        t.Fatalf("status %v", sink.events[0].Invalid[0].Status)
    }
    if !sink.closed { t.Fatalf("rejected stream must be closed") }
}

func TestBinderRejectsUnknownConnection(t *testing.T) {
    reg, hub := newTestWorld(t)
    sess := reg.Create()
    sink := &testSink{}
    b := NewStreamBinder(reg, hub, sink)

    err := b.OnEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: sess.ID, ConnectionID: 42}})
    if !errors.Is(err, errStreamDone) { t.Fatalf("want errStreamDone, got %v", err) }
    if sink.events[0].Invalid[0].Status != protocol.StatusNoSuchConnection {
        t.Fatalf("status %v", sink.events[0].Invalid[0].Status)
    }
    if !sink.closed { t.Fatalf("rejected stream must be closed") }
}

func TestBinderDropsInputBeforeReady(t *testing.T) {
    reg, hub := newTestWorld(t)
    sink := &testSink{}
    b := NewStreamBinder(reg, hub, sink)

    if err := b.OnEvent(&protocol.Event{KeyPresses: []protocol.KeyState{{Port: protocol.Port1}}}); err != nil {
        t.Fatalf("pre-ready input must be dropped, not fatal: %v", err)
    }
    if len(sink.events) != 0 || sink.closed { t.Fatalf("stream must stay open and silent") }
}

func TestBinderBindsAndRelays(t *testing.T) {
    reg, hub := newTestWorld(t)
    sess := reg.Create()
    a, err := sess.ClaimPorts([]protocol.Port{protocol.Port1}, 0)
    if err != nil { t.Fatalf("claim a: %v", err) }
    bConn, err := sess.ClaimPorts([]protocol.Port{protocol.Port2}, 0)
    if err != nil { t.Fatalf("claim b: %v", err) }
    otherSink := &testSink{}
    bConn.Bind(otherSink)

    sink := &testSink{}
    binder := NewStreamBinder(reg, hub, sink)
    if err := binder.OnEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: sess.ID, ConnectionID: a.ID}}); err != nil {
        t.Fatalf("ready: %v", err)
    }
    if a.State() != session.StateReady { t.Fatalf("state %v", a.State()) }

    keys := []protocol.KeyState{{SessionID: sess.ID, Port: protocol.Port1, FrameNumber: 1}}
    if err := binder.OnEvent(&protocol.Event{KeyPresses: keys}); err != nil { t.Fatalf("keys: %v", err) }
    if len(otherSink.events) != 1 { t.Fatalf("peer missed relayed input") }
    if len(sink.events) != 0 { t.Fatalf("sender received its own input") }
}

func TestBinderRelaysToSpectators(t *testing.T) {
    reg, hub := newTestWorld(t)
    target := reg.Create()
    player, _ := target.ClaimPorts([]protocol.Port{protocol.Port1}, 0)

    home := reg.Create()
    spec, _ := home.ClaimPorts([]protocol.Port{protocol.Port1}, 0)
    if err := hub.AddSpectator(target.ID, spec); err != nil { t.Fatalf("add spectator: %v", err) }
    specSink := &testSink{}
    spec.Bind(specSink)

    playerSink := &testSink{}
    binder := NewStreamBinder(reg, hub, playerSink)
    if err := binder.OnEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: target.ID, ConnectionID: player.ID}}); err != nil {
        t.Fatalf("ready: %v", err)
    }
    if err := binder.OnEvent(&protocol.Event{KeyPresses: []protocol.KeyState{{SessionID: target.ID, Port: protocol.Port1, FrameNumber: 5}}}); err != nil {
        t.Fatalf("keys: %v", err)
    }
    if len(specSink.events) != 1 { t.Fatalf("spectator missed input: %d events", len(specSink.events)) }
}

func TestBinderDuplicateReadyIdempotent(t *testing.T) {
    reg, hub := newTestWorld(t)
    sess := reg.Create()
    conn, _ := sess.ClaimPorts([]protocol.Port{protocol.Port1}, 0)

    sink := &testSink{}
    binder := NewStreamBinder(reg, hub, sink)
    ready := &protocol.Event{ClientReady: &protocol.ClientReady{SessionID: sess.ID, ConnectionID: conn.ID}}
    if err := binder.OnEvent(ready); err != nil { t.Fatalf("first ready: %v", err) }
    if err := binder.OnEvent(ready); err != nil { t.Fatalf("second ready: %v", err) }
    if conn.State() != session.StateReady { t.Fatalf("state %v", conn.State()) }
    if sink.closed { t.Fatalf("duplicate ready must not close the stream") }
}

func TestBinderCompletedMarksDone(t *testing.T) {
    reg, hub := newTestWorld(t)
    sess := reg.Create()
    conn, _ := sess.ClaimPorts([]protocol.Port{protocol.Port1}, 0)

    sink := &testSink{}
    binder := NewStreamBinder(reg, hub, sink)
    if err := binder.OnEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: sess.ID, ConnectionID: conn.ID}}); err != nil {
        t.Fatalf("ready: %v", err)
    }
    binder.OnCompleted()
    if conn.State() != session.StateDone { t.Fatalf("state %v", conn.State()) }
    if !sink.closed { t.Fatalf("sink should be closed on completion") }
}
