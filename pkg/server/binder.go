package server

import (
    "errors"

    "go.uber.org/zap"

    "netplayd/pkg/protocol"
    "netplayd/pkg/session"
)

// errStreamDone signals the serve loop that the binder closed the stream and
// no further events should be read from it.
var errStreamDone = errors.New("event stream closed by server")

// StreamBinder drives one event stream through its lifecycle. A stream
// arrives anonymous; the first client_ready event identifies the logical
// connection it belongs to and binds the stream as that connection's sink.
// The state field holds exactly one of unbound or bound.
type StreamBinder struct {
    state binderState
}

type binderState interface {
    onEvent(ev *protocol.Event) (binderState, error)
    onError(err error)
    onCompleted()
}

func NewStreamBinder(reg *session.Registry, hub *session.Hub, sink session.EventSink) *StreamBinder {
    return &StreamBinder{state: &unbound{reg: reg, hub: hub, sink: sink}}
}

// OnEvent dispatches one inbound event. Returns errStreamDone when the
// stream has been rejected and closed.
func (b *StreamBinder) OnEvent(ev *protocol.Event) error {
    next, err := b.state.onEvent(ev)
    if next != nil { b.state = next }
    return err
}

func (b *StreamBinder) OnError(err error)  { b.state.onError(err) }
func (b *StreamBinder) OnCompleted()       { b.state.onCompleted() }

// unbound: the stream has not identified itself yet.
type unbound struct {
    reg  *session.Registry
    hub  *session.Hub
    sink session.EventSink
}

func (u *unbound) onEvent(ev *protocol.Event) (binderState, error) {
    if ev.ClientReady == nil {
        // Input before identification has nowhere to go.
        zap.L().Warn("dropping event from unidentified stream")
        return nil, nil
    }
    ready := ev.ClientReady
    sess := u.reg.Lookup(ready.SessionID)
    if sess == nil {
        return nil, u.reject(protocol.StatusNoSuchSession, ready)
    }
    conn := sess.ConnectionByID(ready.ConnectionID)
    if conn == nil {
        return nil, u.reject(protocol.StatusNoSuchConnection, ready)
    }
    if conn.Bind(u.sink) {
        zap.L().Info("event stream bound",
            zap.Int64("session", sess.ID), zap.Int64("conn", conn.ID))
    }
    return &bound{hub: u.hub, sess: sess, conn: conn}, nil
}

func (u *unbound) reject(status protocol.Status, ready *protocol.ClientReady) error {
    zap.L().Warn("rejecting event stream",
        zap.String("status", status.String()),
        zap.Int64("session", ready.SessionID), zap.Int64("conn", ready.ConnectionID))
    ev := &protocol.Event{Invalid: []protocol.InvalidData{{Status: status}}}
    if err := u.sink.Send(ev); err != nil {
        zap.L().Debug("sending rejection", zap.Error(err))
    }
    if err := u.sink.Close(); err != nil {
        zap.L().Debug("closing rejected stream", zap.Error(err))
    }
    return errStreamDone
}

func (u *unbound) onError(err error) {
    zap.L().Debug("unbound event stream failed", zap.Error(err))
    _ = u.sink.Close()
}

func (u *unbound) onCompleted() {
    _ = u.sink.Close()
}

// bound: the stream belongs to a known connection.
type bound struct {
    hub  *session.Hub
    sess *session.Session
    conn *session.Connection
}

func (b *bound) onEvent(ev *protocol.Event) (binderState, error) {
    // A repeated ready from the same stream is a no-op.
    if len(ev.KeyPresses) > 0 {
        b.sess.RelayInput(b.conn, ev.KeyPresses)
        b.hub.RelayKeys(b.sess.ID, ev.KeyPresses)
    }
    return nil, nil
}

func (b *bound) onError(err error) {
    b.conn.Fail(err)
}

func (b *bound) onCompleted() {
    b.conn.Complete()
}
