// Package server exposes the netplay coordination operations over the wire
// protocol: session lifecycle, port claims, the start barrier, spectating,
// and the event stream handoff that binds anonymous streams to connections.
package server

import (
    "errors"

    "go.uber.org/zap"

    "netplayd/pkg/protocol"
    "netplayd/pkg/protocol/codec"
    "netplayd/pkg/session"
)

// Server implements the request side of the protocol. Event streams are
// handled separately by StreamBinder.
type Server struct {
    reg      *session.Registry
    hub      *session.Hub
    codecs   *codec.Registry
    testMode bool
    shutdown func()
}

// Options configures optional server behavior.
type Options struct {
    // TestMode permits remote shutdown requests.
    TestMode bool
    // Shutdown is invoked when a permitted shutdown request arrives.
    Shutdown func()
}

func New(reg *session.Registry, hub *session.Hub, codecs *codec.Registry, opts Options) *Server {
    if codecs == nil { codecs = codec.Default() }
    return &Server{
        reg:      reg,
        hub:      hub,
        codecs:   codecs,
        testMode: opts.TestMode,
        shutdown: opts.Shutdown,
    }
}

func (s *Server) Registry() *session.Registry { return s.reg }
func (s *Server) Hub() *session.Hub           { return s.hub }

func (s *Server) Ping(req *protocol.Ping) *protocol.Ping {
    return &protocol.Ping{Nonce: req.Nonce, SentUnixMs: req.SentUnixMs}
}

func (s *Server) CreateSession(req *protocol.CreateSessionRequest) *protocol.CreateSessionReply {
    sess := s.reg.Create()
    return &protocol.CreateSessionReply{Status: protocol.StatusSuccess, SessionID: sess.ID}
}

func (s *Server) ClaimPorts(req *protocol.ClaimPortsRequest) *protocol.ClaimPortsReply {
    sess := s.reg.Lookup(req.SessionID)
    if sess == nil {
        return &protocol.ClaimPortsReply{Status: protocol.StatusNoSuchSession, SessionID: req.SessionID}
    }
    requested := make([]protocol.Port, 0, len(req.RequestedPorts))
    for _, p := range req.RequestedPorts {
        if p != protocol.PortNone { requested = append(requested, p) }
    }
    conn, err := sess.ClaimPorts(requested, req.DelayFrames)
    if err != nil {
        var rej *session.RejectionError
        switch {
        case errors.As(err, &rej):
            return &protocol.ClaimPortsReply{
                Status:     protocol.StatusPortRequestRejected,
                SessionID:  req.SessionID,
                Rejections: rej.Rejections,
            }
        case errors.Is(err, session.ErrNoPortsRequested):
            return &protocol.ClaimPortsReply{Status: protocol.StatusNoPortsRequested, SessionID: req.SessionID}
        default:
            zap.L().Error("claim ports", zap.Int64("session", req.SessionID), zap.Error(err))
            return &protocol.ClaimPortsReply{Status: protocol.StatusUnknown, SessionID: req.SessionID}
        }
    }
    return &protocol.ClaimPortsReply{
        Status:       protocol.StatusSuccess,
        SessionID:    sess.ID,
        ConnectionID: conn.ID,
        Ports:        conn.Ports,
    }
}

func (s *Server) StartGame(req *protocol.StartGameRequest) *protocol.StartGameReply {
    sess := s.reg.Lookup(req.SessionID)
    if sess == nil {
        return &protocol.StartGameReply{Status: protocol.StatusNoSuchSession, SessionID: req.SessionID}
    }
    if err := sess.VerifyClientsReady(); err != nil {
        return &protocol.StartGameReply{Status: protocol.StatusClientsNotReady, SessionID: sess.ID}
    }
    sess.BroadcastStart()
    return &protocol.StartGameReply{
        Status:         protocol.StatusSuccess,
        SessionID:      sess.ID,
        ConnectedPorts: sess.ConnectedPorts(),
    }
}

// TeardownSession validates the request and returns the reply together with
// a commit closure performing the removal. Removal closes every sink in the
// session, possibly including the stream the request arrived on, so the
// caller must deliver the reply before running commit.
func (s *Server) TeardownSession(req *protocol.TeardownSessionRequest) (*protocol.TeardownSessionReply, func()) {
    id := req.SessionID
    if s.reg.Lookup(id) == nil {
        return &protocol.TeardownSessionReply{Status: protocol.StatusNoSuchSession, SessionID: id}, nil
    }
    commit := func() {
        s.hub.Remove(id)
        s.reg.Remove(id)
    }
    return &protocol.TeardownSessionReply{Status: protocol.StatusSuccess, SessionID: id}, commit
}

func (s *Server) Spectate(req *protocol.SpectateRequest) *protocol.SpectateReply {
    target := s.reg.Lookup(req.SessionID)
    if target == nil {
        return &protocol.SpectateReply{Status: protocol.StatusNoSuchSession, SessionID: req.SessionID}
    }
    home := s.reg.Lookup(req.HomeSessionID)
    if home == nil {
        return &protocol.SpectateReply{Status: protocol.StatusNoSuchSession, SessionID: req.HomeSessionID}
    }
    conn := home.ConnectionByID(req.ConnectionID)
    if conn == nil {
        return &protocol.SpectateReply{Status: protocol.StatusNoSuchConnection, SessionID: req.HomeSessionID}
    }
    if err := s.hub.AddSpectator(target.ID, conn); err != nil {
        return &protocol.SpectateReply{Status: protocol.StatusNotSpectatable, SessionID: target.ID}
    }
    return &protocol.SpectateReply{Status: protocol.StatusSuccess, SessionID: target.ID}
}

// Shutdown honors remote shutdown only in test mode; production servers
// refuse and keep running.
func (s *Server) Shutdown(req *protocol.ShutdownRequest) *protocol.ShutdownReply {
    if !s.testMode {
        zap.L().Warn("shutdown request refused")
        return &protocol.ShutdownReply{ServerWillDie: false}
    }
    zap.L().Info("shutdown requested")
    if s.shutdown != nil { go s.shutdown() }
    return &protocol.ShutdownReply{ServerWillDie: true}
}
