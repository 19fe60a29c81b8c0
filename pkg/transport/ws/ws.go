// Package ws implements the netplayd transport over WebSocket, so browser
// based emulator frontends can join sessions without raw socket access.
// Each WebSocket connection carries a single message stream; binary
// WebSocket messages map 1:1 to protocol frames.
package ws

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net"
    "net/http"
    "net/url"
    "sync"
    "time"

    "github.com/gorilla/websocket"
    "go.uber.org/zap"

    "netplayd/pkg/transport"
)

const wsPath = "/netplay"

type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindWebSocket }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    nl, err := net.Listen("tcp", address)
    if err != nil { return nil, err }

    l := &Listener{
        nl:     nl,
        accept: make(chan *Session, 8),
        done:   make(chan struct{}),
    }
    upgrader := websocket.Upgrader{
        ReadBufferSize:  4096,
        WriteBufferSize: 4096,
        // Emulator frontends are served from arbitrary origins.
        CheckOrigin: func(*http.Request) bool { return true },
    }
    mux := http.NewServeMux()
    mux.HandleFunc(wsPath, func(w http.ResponseWriter, r *http.Request) {
        conn, err := upgrader.Upgrade(w, r, nil)
        if err != nil {
            zap.L().Warn("ws upgrade failed", zap.Error(err))
            return
        }
        peer := transport.PeerInfo{
            ID:   transport.TempPeerID(transport.KindWebSocket, conn.RemoteAddr()),
            Addr: conn.RemoteAddr().String(),
        }
        s := newSession(conn, peer)
        select {
        case l.accept <- s:
        case <-l.done:
            conn.Close()
        }
    })
    l.srv = &http.Server{Handler: mux}
    go func() {
        if err := l.srv.Serve(nl); err != nil && !errors.Is(err, http.ErrServerClosed) {
            zap.L().Warn("ws server stopped", zap.Error(err))
        }
    }()
    zap.L().Info("ws listening", zap.String("addr", nl.Addr().String()))
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, address string, peer transport.PeerInfo) (transport.Session, error) {
    u := url.URL{Scheme: "ws", Host: address, Path: wsPath}
    conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
    if err != nil {
        if resp != nil { return nil, fmt.Errorf("ws dial: %w (status %d)", err, resp.StatusCode) }
        return nil, err
    }
    if peer.Addr == "" { peer.Addr = address }
    return newSession(conn, peer), nil
}

type Listener struct {
    nl     net.Listener
    srv    *http.Server
    accept chan *Session
    done   chan struct{}
    once   sync.Once
}

func (l *Listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case s := <-l.accept:
        return s, nil
    case <-l.done:
        return nil, errors.New("ws: listener closed")
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

func (l *Listener) Addr() net.Addr { return l.nl.Addr() }

func (l *Listener) Close() error {
    l.once.Do(func() { close(l.done) })
    return l.srv.Close()
}

// Session wraps one WebSocket connection. Like the mem transport it exposes
// a single shared stream: AcceptStream yields it once and then blocks.
type Session struct {
    conn     *websocket.Conn
    peer     transport.PeerInfo
    stream   *Stream
    started  time.Time
    mu       sync.Mutex
    accepted bool
    done     chan struct{}
    once     sync.Once
}

func newSession(conn *websocket.Conn, peer transport.PeerInfo) *Session {
    s := &Session{conn: conn, peer: peer, started: time.Now(), done: make(chan struct{})}
    s.stream = &Stream{conn: conn}
    return s
}

func (s *Session) Peer() transport.PeerInfo      { return s.peer }
func (s *Session) TransportKind() transport.Kind { return transport.KindWebSocket }
func (s *Session) LocalAddr() net.Addr           { return s.conn.LocalAddr() }
func (s *Session) RemoteAddr() net.Addr          { return s.conn.RemoteAddr() }

func (s *Session) OpenStream(ctx context.Context, cls transport.StreamClass) (transport.Stream, error) {
    return s.stream, nil
}

func (s *Session) AcceptStream(ctx context.Context) (transport.Stream, error) {
    s.mu.Lock()
    first := !s.accepted
    s.accepted = true
    s.mu.Unlock()
    if first { return s.stream, nil }
    select {
    case <-s.done:
        return nil, io.EOF
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

func (s *Session) Quality() transport.Quality {
    return transport.Quality{EstablishedAt: s.started, LastSeen: time.Now()}
}

func (s *Session) Close() error {
    s.once.Do(func() { close(s.done) })
    return s.conn.Close()
}

// Stream maps protocol frames to binary WebSocket messages.
type Stream struct {
    conn *websocket.Conn
    wmu  sync.Mutex
}

func (st *Stream) SendBytes(b []byte) error {
    st.wmu.Lock()
    defer st.wmu.Unlock()
    return st.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (st *Stream) RecvBytes() ([]byte, error) {
    for {
        typ, data, err := st.conn.ReadMessage()
        if err != nil { return nil, err }
        if typ != websocket.BinaryMessage {
            zap.L().Debug("ws: dropping non-binary message", zap.Int("type", typ))
            continue
        }
        return data, nil
    }
}

func (st *Stream) Close() error { return st.conn.Close() }
