// Package tcp implements the netplayd transport over TCP with yamux stream
// multiplexing, so a single client connection can carry separate control and
// event streams.
package tcp

import (
    "context"
    "net"
    "time"

    "github.com/hashicorp/yamux"
    "go.uber.org/zap"

    "netplayd/pkg/transport"
)

type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    nl, err := net.Listen("tcp", address)
    if err != nil { return nil, err }
    zap.L().Info("tcp listening", zap.String("addr", nl.Addr().String()))
    return &Listener{nl: nl}, nil
}

func (t *Transport) Dial(ctx context.Context, address string, peer transport.PeerInfo) (transport.Session, error) {
    var d net.Dialer
    conn, err := d.DialContext(ctx, "tcp", address)
    if err != nil { return nil, err }
    mux, err := yamux.Client(conn, muxConfig())
    if err != nil {
        conn.Close()
        return nil, err
    }
    if peer.Addr == "" { peer.Addr = address }
    return newSession(conn, mux, peer), nil
}

func muxConfig() *yamux.Config {
    cfg := yamux.DefaultConfig()
    cfg.EnableKeepAlive = true
    cfg.KeepAliveInterval = 15 * time.Second
    cfg.LogOutput = nil
    cfg.Logger = zap.NewStdLog(zap.L().Named("yamux"))
    return cfg
}

type Listener struct {
    nl net.Listener
}

func (l *Listener) Accept(ctx context.Context) (transport.Session, error) {
    type result struct {
        conn net.Conn
        err  error
    }
    ch := make(chan result, 1)
    go func() {
        conn, err := l.nl.Accept()
        ch <- result{conn, err}
    }()
    select {
    case r := <-ch:
        if r.err != nil { return nil, r.err }
        mux, err := yamux.Server(r.conn, muxConfig())
        if err != nil {
            r.conn.Close()
            return nil, err
        }
        peer := transport.PeerInfo{
            ID:   transport.TempPeerID(transport.KindTCP, r.conn.RemoteAddr()),
            Addr: r.conn.RemoteAddr().String(),
        }
        return newSession(r.conn, mux, peer), nil
    case <-ctx.Done():
        l.nl.Close()
        return nil, ctx.Err()
    }
}

func (l *Listener) Addr() net.Addr { return l.nl.Addr() }
func (l *Listener) Close() error   { return l.nl.Close() }

type Session struct {
    conn    net.Conn
    mux     *yamux.Session
    peer    transport.PeerInfo
    started time.Time
}

func newSession(conn net.Conn, mux *yamux.Session, peer transport.PeerInfo) *Session {
    return &Session{conn: conn, mux: mux, peer: peer, started: time.Now()}
}

func (s *Session) Peer() transport.PeerInfo      { return s.peer }
func (s *Session) TransportKind() transport.Kind { return transport.KindTCP }
func (s *Session) LocalAddr() net.Addr           { return s.conn.LocalAddr() }
func (s *Session) RemoteAddr() net.Addr          { return s.conn.RemoteAddr() }

func (s *Session) OpenStream(ctx context.Context, cls transport.StreamClass) (transport.Stream, error) {
    st, err := s.mux.OpenStream()
    if err != nil { return nil, err }
    return transport.NewFramedStream(st), nil
}

func (s *Session) AcceptStream(ctx context.Context) (transport.Stream, error) {
    st, err := s.mux.AcceptStreamWithContext(ctx)
    if err != nil { return nil, err }
    return transport.NewFramedStream(st), nil
}

func (s *Session) Quality() transport.Quality {
    q := transport.Quality{EstablishedAt: s.started, LastSeen: time.Now()}
    if rtt, err := s.mux.Ping(); err == nil { q.RTT = rtt }
    return q
}

func (s *Session) Close() error {
    err := s.mux.Close()
    s.conn.Close()
    return err
}
