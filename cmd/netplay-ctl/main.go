// netplay-ctl is a small operator tool for poking a running netplayd:
// liveness pings, session setup, and test-mode shutdown.
package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "netplayd/pkg/protocol"
    "netplayd/pkg/protocol/codec"
    "netplayd/pkg/transport"
    "netplayd/pkg/transport/quic"
    "netplayd/pkg/transport/tcp"
    "netplayd/pkg/transport/ws"
)

func main() {
    os.Exit(run(os.Args[1:]))
}

func usage(fs *flag.FlagSet) {
    fmt.Fprintln(os.Stderr, "usage: netplay-ctl [flags] <ping|create|claim|ready|start|teardown|shutdown>")
    fs.PrintDefaults()
}

func run(args []string) int {
    fs := flag.NewFlagSet("netplay-ctl", flag.ContinueOnError)
    addr := fs.String("addr", "127.0.0.1:7864", "server address")
    kind := fs.String("kind", "tcp", "transport kind (tcp|quic|ws)")
    sessionID := fs.Int64("session", 0, "session id (claim/ready/start/teardown)")
    connID := fs.Int64("conn", 0, "connection id (ready)")
    ports := fs.String("ports", "any", "comma-separated ports to claim: any,1..4")
    delay := fs.Uint("delay", 0, "input delay in frames (claim)")
    timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
    if err := fs.Parse(args); err != nil { return 2 }
    if fs.NArg() != 1 {
        usage(fs)
        return 2
    }
    cmd := fs.Arg(0)

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()

    tr, err := transportFor(*kind)
    if err != nil {
        fmt.Fprintln(os.Stderr, err)
        return 2
    }
    sess, err := tr.Dial(ctx, *addr, transport.PeerInfo{})
    if err != nil {
        fmt.Fprintf(os.Stderr, "dial: %v\n", err)
        return 1
    }
    defer sess.Close()
    st, err := sess.OpenStream(ctx, transport.StreamControl)
    if err != nil {
        fmt.Fprintf(os.Stderr, "open stream: %v\n", err)
        return 1
    }
    c := &client{st: st, codecs: codec.Default()}

    switch cmd {
    case "ping":
        start := time.Now()
        var pong protocol.Ping
        if err := c.request(protocol.MsgPing, &protocol.Ping{Nonce: uint64(start.UnixNano()), SentUnixMs: start.UnixMilli()}, &pong); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 1
        }
        fmt.Printf("pong in %s\n", time.Since(start))
    case "create":
        var reply protocol.CreateSessionReply
        if err := c.request(protocol.MsgCreateSession, &protocol.CreateSessionRequest{}, &reply); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 1
        }
        fmt.Printf("status=%s session=%d\n", reply.Status, reply.SessionID)
    case "claim":
        req := &protocol.ClaimPortsRequest{SessionID: *sessionID, DelayFrames: uint32(*delay)}
        if err := parsePorts(*ports, &req.RequestedPorts); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 2
        }
        var reply protocol.ClaimPortsReply
        if err := c.request(protocol.MsgClaimPorts, req, &reply); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 1
        }
        fmt.Printf("status=%s session=%d conn=%d ports=%v rejections=%v\n",
            reply.Status, reply.SessionID, reply.ConnectionID, reply.Ports, reply.Rejections)
    case "ready":
        // declare readiness on this stream, then dump incoming events until
        // the connection closes or the timeout hits
        if err := c.sendEvent(&protocol.Event{ClientReady: &protocol.ClientReady{
            SessionID: *sessionID, ConnectionID: *connID,
        }}); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 1
        }
        deadline := time.Now().Add(*timeout)
        for time.Now().Before(deadline) {
            ev, err := c.recvEvent()
            if err != nil {
                fmt.Fprintf(os.Stderr, "stream closed: %v\n", err)
                return 1
            }
            switch {
            case ev.StartGame != nil:
                fmt.Printf("start session=%d ports=%v\n", ev.StartGame.SessionID, ev.StartGame.ConnectedPorts)
            case len(ev.KeyPresses) > 0:
                for _, k := range ev.KeyPresses {
                    fmt.Printf("keys port=%s frame=%d buttons=%#x\n", k.Port, k.FrameNumber, k.Buttons)
                }
            case len(ev.Invalid) > 0:
                fmt.Printf("rejected: %s\n", ev.Invalid[0].Status)
                return 1
            }
        }
    case "start":
        var reply protocol.StartGameReply
        if err := c.request(protocol.MsgStartGame, &protocol.StartGameRequest{SessionID: *sessionID}, &reply); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 1
        }
        fmt.Printf("status=%s ports=%v\n", reply.Status, reply.ConnectedPorts)
    case "teardown":
        var reply protocol.TeardownSessionReply
        if err := c.request(protocol.MsgTeardownSession, &protocol.TeardownSessionRequest{SessionID: *sessionID}, &reply); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 1
        }
        fmt.Printf("status=%s\n", reply.Status)
    case "shutdown":
        var reply protocol.ShutdownReply
        if err := c.request(protocol.MsgShutdown, &protocol.ShutdownRequest{}, &reply); err != nil {
            fmt.Fprintln(os.Stderr, err)
            return 1
        }
        fmt.Printf("server_will_die=%v\n", reply.ServerWillDie)
    default:
        usage(fs)
        return 2
    }
    return 0
}

type client struct {
    st     transport.Stream
    codecs *codec.Registry
}

// request sends one request and reads frames until its reply arrives,
// discarding unrelated event traffic.
func (c *client) request(typ uint8, body, out any) error {
    h := protocol.Header{
        Version:     protocol.Version,
        Type:        typ,
        Correlation: protocol.NewCorrelation(),
    }
    env, err := protocol.NewEnvelopeWithBody(h, protocol.FormatCBOR, body, c.codecs)
    if err != nil { return err }
    frame, err := env.EncodeFrame()
    if err != nil { return err }
    if err := c.st.SendBytes(frame); err != nil { return err }

    for {
        raw, err := c.st.RecvBytes()
        if err != nil { return err }
        var reply protocol.Envelope
        if err := reply.DecodeFrame(raw); err != nil { return err }
        if !reply.HasFlag(protocol.FlagReply) || reply.Header.Correlation != h.Correlation { continue }
        _, err = protocol.DecodeEnvelopeBody(&reply, out, c.codecs)
        return err
    }
}

func (c *client) sendEvent(ev *protocol.Event) error {
    h := protocol.Header{
        Version:     protocol.Version,
        Type:        protocol.MsgEvent,
        Correlation: protocol.NewCorrelation(),
    }
    env, err := protocol.NewEnvelopeWithBody(h, protocol.FormatCBOR, ev, c.codecs)
    if err != nil { return err }
    frame, err := env.EncodeFrame()
    if err != nil { return err }
    return c.st.SendBytes(frame)
}

func (c *client) recvEvent() (*protocol.Event, error) {
    for {
        raw, err := c.st.RecvBytes()
        if err != nil { return nil, err }
        var env protocol.Envelope
        if err := env.DecodeFrame(raw); err != nil { return nil, err }
        if env.Header.Type != protocol.MsgEvent { continue }
        var ev protocol.Event
        if _, err := protocol.DecodeEnvelopeBody(&env, &ev, c.codecs); err != nil { return nil, err }
        return &ev, nil
    }
}

func parsePorts(s string, out *[4]protocol.Port) error {
    if s == "" { return nil }
    parts := strings.Split(s, ",")
    if len(parts) > len(out) { return fmt.Errorf("at most %d ports per claim", len(out)) }
    for i, p := range parts {
        switch p = strings.TrimSpace(p); p {
        case "any":
            out[i] = protocol.PortAny
        default:
            n, err := strconv.Atoi(p)
            if err != nil || n < 1 || n > 4 { return fmt.Errorf("bad port %q", p) }
            out[i] = protocol.Port(n)
        }
    }
    return nil
}

func transportFor(kind string) (transport.Transport, error) {
    switch kind {
    case "tcp":
        return tcp.New(), nil
    case "quic":
        return quic.New(), nil
    case "ws":
        return ws.New(), nil
    default:
        return nil, fmt.Errorf("unknown transport kind %q", kind)
    }
}
