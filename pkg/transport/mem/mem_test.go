package mem

import (
    "bytes"
    "context"
    "testing"
    "time"

    "netplayd/pkg/transport"
)

func TestDialAcceptRoundtrip(t *testing.T) {
    tr := New()
    l, err := tr.Listen(context.Background(), "roundtrip")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    type acceptResult struct {
        sess transport.Session
        err  error
    }
    acceptCh := make(chan acceptResult, 1)
    go func() {
        sess, err := l.Accept(context.Background())
        acceptCh <- acceptResult{sess, err}
    }()

    client, err := tr.Dial(context.Background(), "roundtrip", transport.PeerInfo{ID: "client"})
    if err != nil { t.Fatalf("dial: %v", err) }
    defer client.Close()
    ar := <-acceptCh
    if ar.err != nil { t.Fatalf("accept: %v", ar.err) }
    serverSess := ar.sess
    defer serverSess.Close()

    cs, err := client.OpenStream(context.Background(), transport.StreamControl)
    if err != nil { t.Fatalf("open: %v", err) }
    ss, err := serverSess.AcceptStream(context.Background())
    if err != nil { t.Fatalf("accept stream: %v", err) }

    msg := []byte("hello netplay")
    done := make(chan error, 1)
    go func() { done <- cs.SendBytes(msg) }()
    got, err := ss.RecvBytes()
    if err != nil { t.Fatalf("recv: %v", err) }
    if err := <-done; err != nil { t.Fatalf("send: %v", err) }
    if !bytes.Equal(got, msg) { t.Fatalf("roundtrip mismatch: %q", got) }
}

func TestAcceptStreamOnlyOnce(t *testing.T) {
    tr := New()
    l, err := tr.Listen(context.Background(), "accept-once")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    go func() { tr.Dial(context.Background(), "accept-once", transport.PeerInfo{}) }()
    sess, err := l.Accept(context.Background())
    if err != nil { t.Fatalf("accept: %v", err) }
    defer sess.Close()

    if _, err := sess.AcceptStream(context.Background()); err != nil {
        t.Fatalf("first accept stream: %v", err)
    }
    ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
    defer cancel()
    if _, err := sess.AcceptStream(ctx); err == nil {
        t.Fatalf("second accept stream must block until session end")
    }
}

func TestDialWithoutListener(t *testing.T) {
    tr := New()
    if _, err := tr.Dial(context.Background(), "nobody-home", transport.PeerInfo{}); err == nil {
        t.Fatalf("dial without listener must fail")
    }
}

func TestListenerCloseFreesAddress(t *testing.T) {
    tr := New()
    l, err := tr.Listen(context.Background(), "reuse")
    if err != nil { t.Fatalf("listen: %v", err) }
    if _, err := tr.Listen(context.Background(), "reuse"); err == nil {
        t.Fatalf("duplicate listen must fail")
    }
    l.Close()
    l2, err := tr.Listen(context.Background(), "reuse")
    if err != nil { t.Fatalf("relisten after close: %v", err) }
    l2.Close()
}
