// Package mem provides an in-process transport over net.Pipe, used by tests
// and by embedded setups where client and server share a process.
package mem

import (
    "context"
    "encoding/binary"
    "errors"
    "fmt"
    "io"
    "net"
    "sync"
    "time"

    "netplayd/pkg/transport"
)

const maxFrame = 1 << 24

var (
    regMu     sync.Mutex
    listeners = map[string]*Listener{}
)

// Transport implements transport.Transport over synchronous in-memory pipes.
// Addresses are arbitrary names in a process-wide namespace.
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    regMu.Lock()
    defer regMu.Unlock()
    if _, ok := listeners[address]; ok {
        return nil, fmt.Errorf("mem: address %q already in use", address)
    }
    l := &Listener{
        address: address,
        accept:  make(chan *Session, 8),
        done:    make(chan struct{}),
    }
    listeners[address] = l
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, address string, peer transport.PeerInfo) (transport.Session, error) {
    regMu.Lock()
    l := listeners[address]
    regMu.Unlock()
    if l == nil { return nil, fmt.Errorf("mem: no listener at %q", address) }

    cc, sc := net.Pipe()
    client := newSession(cc, peer)
    server := newSession(sc, transport.PeerInfo{ID: transport.TempPeerID(transport.KindMem, cc.LocalAddr())})

    select {
    case l.accept <- server:
        return client, nil
    case <-l.done:
        cc.Close()
        sc.Close()
        return nil, errors.New("mem: listener closed")
    case <-ctx.Done():
        cc.Close()
        sc.Close()
        return nil, ctx.Err()
    }
}

// Listener hands out the server side of dialed pipes.
type Listener struct {
    address string
    accept  chan *Session
    done    chan struct{}
    once    sync.Once
}

func (l *Listener) Accept(ctx context.Context) (transport.Session, error) {
    select {
    case s := <-l.accept:
        return s, nil
    case <-l.done:
        return nil, errors.New("mem: listener closed")
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

func (l *Listener) Addr() net.Addr { return memAddr(l.address) }

func (l *Listener) Close() error {
    l.once.Do(func() {
        close(l.done)
        regMu.Lock()
        delete(listeners, l.address)
        regMu.Unlock()
    })
    return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

// Session carries a single shared stream over one pipe end. AcceptStream
// returns that stream exactly once and then blocks, per the transport
// contract for non-multiplexing transports.
type Session struct {
    conn     net.Conn
    peer     transport.PeerInfo
    stream   *Stream
    started  time.Time
    mu       sync.Mutex
    accepted bool
    done     chan struct{}
    once     sync.Once
}

func newSession(conn net.Conn, peer transport.PeerInfo) *Session {
    s := &Session{conn: conn, peer: peer, started: time.Now(), done: make(chan struct{})}
    s.stream = &Stream{conn: conn}
    return s
}

func (s *Session) Peer() transport.PeerInfo      { return s.peer }
func (s *Session) TransportKind() transport.Kind { return transport.KindMem }
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

// Stream frames messages with a u32 little-endian length prefix.
type Stream struct {
    conn net.Conn
    wmu  sync.Mutex
    rmu  sync.Mutex
}

func (st *Stream) SendBytes(b []byte) error {
    if len(b) > maxFrame { return fmt.Errorf("mem: frame too large: %d", len(b)) }
    st.wmu.Lock()
    defer st.wmu.Unlock()
    var hdr [4]byte
    binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
    if _, err := st.conn.Write(hdr[:]); err != nil { return err }
    _, err := st.conn.Write(b)
    return err
}

func (st *Stream) RecvBytes() ([]byte, error) {
    st.rmu.Lock()
    defer st.rmu.Unlock()
    var hdr [4]byte
    if _, err := io.ReadFull(st.conn, hdr[:]); err != nil { return nil, err }
    n := binary.LittleEndian.Uint32(hdr[:])
    if n > maxFrame { return nil, fmt.Errorf("mem: frame too large: %d", n) }
    buf := make([]byte, n)
    if _, err := io.ReadFull(st.conn, buf); err != nil { return nil, err }
    return buf, nil
}

func (st *Stream) Close() error { return st.conn.Close() }
