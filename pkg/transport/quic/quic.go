// Package quic implements the netplayd transport over QUIC. QUIC gives us
// native stream multiplexing and fast reconnects, which suits input relay
// traffic from emulator clients on lossy home links.
package quic

import (
    "context"
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/tls"
    "crypto/x509"
    "crypto/x509/pkix"
    "encoding/pem"
    "math/big"
    "net"
    "time"

    "github.com/quic-go/quic-go"
    "go.uber.org/zap"

    "netplayd/pkg/transport"
)

const alpnProto = "netplay"

type Transport struct {
    // TLS overrides; when nil, Listen generates a self-signed cert and Dial
    // skips verification. Production deployments should supply real configs.
    ListenTLS *tls.Config
    DialTLS   *tls.Config
}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    tlsConf := t.ListenTLS
    if tlsConf == nil {
        var err error
        tlsConf, err = selfSignedTLS()
        if err != nil { return nil, err }
    }
    tlsConf = tlsConf.Clone()
    tlsConf.NextProtos = []string{alpnProto}

    ql, err := quic.ListenAddr(address, tlsConf, quicConfig())
    if err != nil { return nil, err }
    zap.L().Info("quic listening", zap.String("addr", ql.Addr().String()))
    return &Listener{ql: ql}, nil
}

func (t *Transport) Dial(ctx context.Context, address string, peer transport.PeerInfo) (transport.Session, error) {
    tlsConf := t.DialTLS
    if tlsConf == nil { tlsConf = &tls.Config{InsecureSkipVerify: true} }
    tlsConf = tlsConf.Clone()
    tlsConf.NextProtos = []string{alpnProto}

    conn, err := quic.DialAddr(ctx, address, tlsConf, quicConfig())
    if err != nil { return nil, err }
    if peer.Addr == "" { peer.Addr = address }
    return newSession(conn, peer), nil
}

func quicConfig() *quic.Config {
    return &quic.Config{
        MaxIdleTimeout:  60 * time.Second,
        KeepAlivePeriod: 15 * time.Second,
    }
}

type Listener struct {
    ql *quic.Listener
}

func (l *Listener) Accept(ctx context.Context) (transport.Session, error) {
    conn, err := l.ql.Accept(ctx)
    if err != nil { return nil, err }
    peer := transport.PeerInfo{
        ID:   transport.TempPeerID(transport.KindQUIC, conn.RemoteAddr()),
        Addr: conn.RemoteAddr().String(),
    }
    return newSession(conn, peer), nil
}

func (l *Listener) Addr() net.Addr { return l.ql.Addr() }
func (l *Listener) Close() error   { return l.ql.Close() }

type Session struct {
    conn    quic.Connection
    peer    transport.PeerInfo
    started time.Time
}

func newSession(conn quic.Connection, peer transport.PeerInfo) *Session {
    return &Session{conn: conn, peer: peer, started: time.Now()}
}

func (s *Session) Peer() transport.PeerInfo      { return s.peer }
func (s *Session) TransportKind() transport.Kind { return transport.KindQUIC }
func (s *Session) LocalAddr() net.Addr           { return s.conn.LocalAddr() }
func (s *Session) RemoteAddr() net.Addr          { return s.conn.RemoteAddr() }

func (s *Session) OpenStream(ctx context.Context, cls transport.StreamClass) (transport.Stream, error) {
    st, err := s.conn.OpenStreamSync(ctx)
    if err != nil { return nil, err }
    return transport.NewFramedStream(st), nil
}

func (s *Session) AcceptStream(ctx context.Context) (transport.Stream, error) {
    st, err := s.conn.AcceptStream(ctx)
    if err != nil { return nil, err }
    return transport.NewFramedStream(st), nil
}

func (s *Session) Quality() transport.Quality {
    return transport.Quality{EstablishedAt: s.started, LastSeen: time.Now()}
}

func (s *Session) Close() error {
    return s.conn.CloseWithError(0, "bye")
}

func selfSignedTLS() (*tls.Config, error) {
    key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    if err != nil { return nil, err }
    tmpl := x509.Certificate{
        SerialNumber: big.NewInt(time.Now().UnixNano()),
        Subject:      pkix.Name{CommonName: "netplayd"},
        NotBefore:    time.Now().Add(-time.Hour),
        NotAfter:     time.Now().Add(365 * 24 * time.Hour),
        KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
    if err != nil { return nil, err }
    keyDER, err := x509.MarshalECPrivateKey(key)
    if err != nil { return nil, err }
    certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
    keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
    cert, err := tls.X509KeyPair(certPEM, keyPEM)
    if err != nil { return nil, err }
    return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
