package server

import (
    "context"
    "errors"
    "fmt"
    "io"
    "sync"

    "go.uber.org/zap"

    "netplayd/pkg/protocol"
    "netplayd/pkg/protocol/codec"
    "netplayd/pkg/transport"
)

// Serve runs the accept loop on one listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, l transport.Listener, tracker *transport.Tracker) error {
    for {
        sess, err := l.Accept(ctx)
        if err != nil {
            if ctx.Err() != nil { return ctx.Err() }
            return err
        }
        if !tracker.Add(sess) {
            sess.Close()
            continue
        }
        go func() {
            defer tracker.Remove(sess)
            defer sess.Close()
            s.serveSession(ctx, sess)
        }()
    }
}

func (s *Server) serveSession(ctx context.Context, sess transport.Session) {
    zap.L().Debug("client session opened",
        zap.String("kind", sess.TransportKind().String()),
        zap.String("peer", string(sess.Peer().ID)))
    var wg sync.WaitGroup
    for {
        st, err := sess.AcceptStream(ctx)
        if err != nil {
            if !errors.Is(err, io.EOF) && ctx.Err() == nil {
                zap.L().Debug("accept stream", zap.Error(err))
            }
            break
        }
        wg.Add(1)
        go func() {
            defer wg.Done()
            s.serveStream(st)
        }()
    }
    wg.Wait()
}

// serveStream pumps one stream. Requests are answered in place; event
// traffic is handed to a StreamBinder which owns stream identity.
func (s *Server) serveStream(st transport.Stream) {
    sink := newStreamSink(st, s.codecs)
    binder := NewStreamBinder(s.reg, s.hub, sink)
    for {
        raw, err := st.RecvBytes()
        if err != nil {
            if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
                binder.OnCompleted()
            } else {
                binder.OnError(err)
            }
            return
        }
        var env protocol.Envelope
        if err := env.DecodeFrame(raw); err != nil {
            zap.L().Warn("undecodable frame", zap.Error(err))
            binder.OnError(err)
            st.Close()
            return
        }
        if env.Header.Type == protocol.MsgEvent {
            var ev protocol.Event
            if _, err := protocol.DecodeEnvelopeBody(&env, &ev, s.codecs); err != nil {
                zap.L().Warn("undecodable event body", zap.Error(err))
                continue
            }
            if err := binder.OnEvent(&ev); err != nil { return }
            continue
        }
        if err := s.handleRequest(st, &env); err != nil {
            zap.L().Debug("request handling failed", zap.Error(err))
            st.Close()
            return
        }
    }
}

func (s *Server) handleRequest(st transport.Stream, req *protocol.Envelope) error {
    var reply any
    var after func() // side effects that must wait for the reply write
    switch req.Header.Type {
    case protocol.MsgPing:
        var body protocol.Ping
        if _, err := protocol.DecodeEnvelopeBody(req, &body, s.codecs); err != nil { return err }
        reply = s.Ping(&body)
    case protocol.MsgCreateSession:
        var body protocol.CreateSessionRequest
        if _, err := protocol.DecodeEnvelopeBody(req, &body, s.codecs); err != nil { return err }
        reply = s.CreateSession(&body)
    case protocol.MsgClaimPorts:
        var body protocol.ClaimPortsRequest
        if _, err := protocol.DecodeEnvelopeBody(req, &body, s.codecs); err != nil { return err }
        reply = s.ClaimPorts(&body)
    case protocol.MsgStartGame:
        var body protocol.StartGameRequest
        if _, err := protocol.DecodeEnvelopeBody(req, &body, s.codecs); err != nil { return err }
        reply = s.StartGame(&body)
    case protocol.MsgTeardownSession:
        var body protocol.TeardownSessionRequest
        if _, err := protocol.DecodeEnvelopeBody(req, &body, s.codecs); err != nil { return err }
        reply, after = s.TeardownSession(&body)
    case protocol.MsgSpectate:
        var body protocol.SpectateRequest
        if _, err := protocol.DecodeEnvelopeBody(req, &body, s.codecs); err != nil { return err }
        reply = s.Spectate(&body)
    case protocol.MsgShutdown:
        var body protocol.ShutdownRequest
        if _, err := protocol.DecodeEnvelopeBody(req, &body, s.codecs); err != nil { return err }
        reply = s.Shutdown(&body)
    default:
        return fmt.Errorf("unknown request type %d", req.Header.Type)
    }

    env, err := protocol.NewEnvelopeWithBody(protocol.ReplyHeader(req.Header), protocol.FormatCBOR, reply, s.codecs)
    if err != nil { return err }
    frame, err := env.EncodeFrame()
    if err != nil { return err }
    if err := st.SendBytes(frame); err != nil { return err }
    if after != nil { after() }
    return nil
}

// streamSink adapts a transport stream into a session.EventSink. Encoding
// and writes are serialized; relay paths call Send from multiple goroutines.
type streamSink struct {
    mu     sync.Mutex
    st     transport.Stream
    codecs *codec.Registry
}

func newStreamSink(st transport.Stream, codecs *codec.Registry) *streamSink {
    return &streamSink{st: st, codecs: codecs}
}

func (s *streamSink) Send(ev *protocol.Event) error {
    h := protocol.Header{
        Version:     protocol.Version,
        Type:        protocol.MsgEvent,
        Correlation: protocol.NewCorrelation(),
    }
    env, err := protocol.NewEnvelopeWithBody(h, protocol.FormatCBOR, ev, s.codecs)
    if err != nil { return err }
    frame, err := env.EncodeFrame()
    if err != nil { return err }
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.st.SendBytes(frame)
}

func (s *streamSink) Close() error { return s.st.Close() }
