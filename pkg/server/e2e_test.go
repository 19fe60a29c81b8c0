package server

import (
    "context"
    "testing"
    "time"

    "netplayd/pkg/protocol"
    "netplayd/pkg/protocol/codec"
    "netplayd/pkg/session"
    "netplayd/pkg/transport"
    "netplayd/pkg/transport/mem"
)

// wireClient is a minimal protocol client for exercising the full stack.
// A reader goroutine splits inbound frames into replies and events; pipe
// writes block until read, so the pump must always run.
type wireClient struct {
    t       *testing.T
    sess    transport.Session
    st      transport.Stream
    codecs  *codec.Registry
    replies chan protocol.Envelope
    events  chan *protocol.Event
}

func dialClient(t *testing.T, tr *mem.Transport, addr string) *wireClient {
    t.Helper()
    sess, err := tr.Dial(context.Background(), addr, transport.PeerInfo{})
    if err != nil { t.Fatalf("dial: %v", err) }
    st, err := sess.OpenStream(context.Background(), transport.StreamControl)
    if err != nil { t.Fatalf("open stream: %v", err) }
    c := &wireClient{
        t:       t,
        sess:    sess,
        st:      st,
        codecs:  codec.Default(),
        replies: make(chan protocol.Envelope, 16),
        events:  make(chan *protocol.Event, 16),
    }
    go c.pump()
    t.Cleanup(func() { sess.Close() })
    return c
}

func (c *wireClient) pump() {
    for {
        raw, err := c.st.RecvBytes()
        if err != nil { return }
        var env protocol.Envelope
        if err := env.DecodeFrame(raw); err != nil { return }
        if env.Header.Type == protocol.MsgEvent {
            var ev protocol.Event
            if _, err := protocol.DecodeEnvelopeBody(&env, &ev, c.codecs); err != nil { return }
            c.events <- &ev
            continue
        }
        c.replies <- env
    }
}

func (c *wireClient) request(typ uint8, body, out any) {
    c.t.Helper()
    h := protocol.Header{
        Version:     protocol.Version,
        Type:        typ,
        Correlation: protocol.NewCorrelation(),
    }
    env, err := protocol.NewEnvelopeWithBody(h, protocol.FormatCBOR, body, c.codecs)
    if err != nil { c.t.Fatalf("encode request: %v", err) }
    frame, err := env.EncodeFrame()
    if err != nil { c.t.Fatalf("frame request: %v", err) }
    if err := c.st.SendBytes(frame); err != nil { c.t.Fatalf("send request: %v", err) }

    select {
    case reply := <-c.replies:
        if reply.Header.Type != typ || !reply.HasFlag(protocol.FlagReply) {
            c.t.Fatalf("unexpected reply header: %+v", reply.Header)
        }
        if reply.Header.Correlation != h.Correlation {
            c.t.Fatalf("correlation not echoed")
        }
        if _, err := protocol.DecodeEnvelopeBody(&reply, out, c.codecs); err != nil {
            c.t.Fatalf("decode reply: %v", err)
        }
    case <-time.After(5 * time.Second):
        c.t.Fatalf("timed out waiting for reply type %d", typ)
    }
}

func (c *wireClient) sendEvent(ev *protocol.Event) {
    c.t.Helper()
    h := protocol.Header{
        Version:     protocol.Version,
        Type:        protocol.MsgEvent,
        Correlation: protocol.NewCorrelation(),
    }
    env, err := protocol.NewEnvelopeWithBody(h, protocol.FormatCBOR, ev, c.codecs)
    if err != nil { c.t.Fatalf("encode event: %v", err) }
    frame, err := env.EncodeFrame()
    if err != nil { c.t.Fatalf("frame event: %v", err) }
    if err := c.st.SendBytes(frame); err != nil { c.t.Fatalf("send event: %v", err) }
}

func (c *wireClient) waitEvent() *protocol.Event {
    c.t.Helper()
    select {
    case ev := <-c.events:
        return ev
    case <-time.After(5 * time.Second):
        c.t.Fatalf("timed out waiting for event")
        return nil
    }
}

// ping doubles as a sequencing barrier: the server handles frames of one
// stream in order, so a ping reply proves earlier events were processed.
func (c *wireClient) ping() {
    var pong protocol.Ping
    c.request(protocol.MsgPing, &protocol.Ping{Nonce: 1}, &pong)
}

func startTestServer(t *testing.T, addr string) {
    t.Helper()
    reg := session.NewRegistry(0)
    hub := session.NewHub(true)
    srv := New(reg, hub, nil, Options{})
    tracker := transport.NewTracker()

    tr := mem.New()
    l, err := tr.Listen(context.Background(), addr)
    if err != nil { t.Fatalf("listen: %v", err) }
    ctx, cancel := context.WithCancel(context.Background())
    go srv.Serve(ctx, l, tracker)
    t.Cleanup(func() {
        cancel()
        l.Close()
        tracker.CloseAll()
    })
}

func TestEndToEndTwoPlayerGame(t *testing.T) {
    addr := "e2e-" + t.Name()
    startTestServer(t, addr)
    tr := mem.New()

    a := dialClient(t, tr, addr)
    b := dialClient(t, tr, addr)

    var created protocol.CreateSessionReply
    a.request(protocol.MsgCreateSession, &protocol.CreateSessionRequest{}, &created)
    if created.Status != protocol.StatusSuccess { t.Fatalf("create: %#v", created) }

    var claimA, claimB protocol.ClaimPortsReply
    a.request(protocol.MsgClaimPorts, &protocol.ClaimPortsRequest{
        SessionID:      created.SessionID,
        RequestedPorts: [4]protocol.Port{protocol.PortAny},
    }, &claimA)
    b.request(protocol.MsgClaimPorts, &protocol.ClaimPortsRequest{
        SessionID:      created.SessionID,
        RequestedPorts: [4]protocol.Port{protocol.PortAny},
    }, &claimB)
    if claimA.Status != protocol.StatusSuccess || claimB.Status != protocol.StatusSuccess {
        t.Fatalf("claims: %#v %#v", claimA, claimB)
    }
    if claimA.Ports[0] == claimB.Ports[0] { t.Fatalf("same port granted twice") }

    a.sendEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: created.SessionID, ConnectionID: claimA.ConnectionID}})
    b.sendEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: created.SessionID, ConnectionID: claimB.ConnectionID}})
    a.ping()
    b.ping()

    var start protocol.StartGameReply
    a.request(protocol.MsgStartGame, &protocol.StartGameRequest{SessionID: created.SessionID}, &start)
    if start.Status != protocol.StatusSuccess { t.Fatalf("start: %#v", start) }
    if len(start.ConnectedPorts) != 2 { t.Fatalf("connected ports: %v", start.ConnectedPorts) }

    for _, c := range []*wireClient{a, b} {
        ev := c.waitEvent()
        if ev.StartGame == nil || len(ev.StartGame.ConnectedPorts) != 2 {
            t.Fatalf("start notice: %#v", ev)
        }
    }

    // input relay: a's keys reach b only
    a.sendEvent(&protocol.Event{KeyPresses: []protocol.KeyState{{
        SessionID: created.SessionID, Port: claimA.Ports[0], FrameNumber: 12, Buttons: 0x3,
    }}})
    ev := b.waitEvent()
    if len(ev.KeyPresses) != 1 || ev.KeyPresses[0].FrameNumber != 12 {
        t.Fatalf("relayed keys: %#v", ev)
    }
    select {
    case stray := <-a.events:
        t.Fatalf("sender received its own input: %#v", stray)
    case <-time.After(50 * time.Millisecond):
    }

    var down protocol.TeardownSessionReply
    a.request(protocol.MsgTeardownSession, &protocol.TeardownSessionRequest{SessionID: created.SessionID}, &down)
    if down.Status != protocol.StatusSuccess { t.Fatalf("teardown: %#v", down) }
}

func TestEndToEndStartBarrier(t *testing.T) {
    addr := "e2e-" + t.Name()
    startTestServer(t, addr)
    tr := mem.New()
    a := dialClient(t, tr, addr)

    var created protocol.CreateSessionReply
    a.request(protocol.MsgCreateSession, &protocol.CreateSessionRequest{}, &created)
    var claim protocol.ClaimPortsReply
    a.request(protocol.MsgClaimPorts, &protocol.ClaimPortsRequest{
        SessionID:      created.SessionID,
        RequestedPorts: [4]protocol.Port{protocol.PortAny},
    }, &claim)

    var start protocol.StartGameReply
    a.request(protocol.MsgStartGame, &protocol.StartGameRequest{SessionID: created.SessionID}, &start)
    if start.Status != protocol.StatusClientsNotReady { t.Fatalf("barrier failed: %#v", start) }

    a.sendEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: created.SessionID, ConnectionID: claim.ConnectionID}})
    a.ping()
    a.request(protocol.MsgStartGame, &protocol.StartGameRequest{SessionID: created.SessionID}, &start)
    if start.Status != protocol.StatusSuccess { t.Fatalf("start after ready: %#v", start) }
}

func TestEndToEndUnknownSessionReadyRejected(t *testing.T) {
    addr := "e2e-" + t.Name()
    startTestServer(t, addr)
    tr := mem.New()
    a := dialClient(t, tr, addr)

    a.sendEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: 404, ConnectionID: 1}})
    ev := a.waitEvent()
    if len(ev.Invalid) != 1 || ev.Invalid[0].Status != protocol.StatusNoSuchSession {
        t.Fatalf("want no-such-session invalid data, got %#v", ev)
    }
}

func TestEndToEndSpectator(t *testing.T) {
    addr := "e2e-" + t.Name()
    startTestServer(t, addr)
    tr := mem.New()

    player := dialClient(t, tr, addr)
    watcher := dialClient(t, tr, addr)

    var target protocol.CreateSessionReply
    player.request(protocol.MsgCreateSession, &protocol.CreateSessionRequest{}, &target)
    var pc protocol.ClaimPortsReply
    player.request(protocol.MsgClaimPorts, &protocol.ClaimPortsRequest{
        SessionID:      target.SessionID,
        RequestedPorts: [4]protocol.Port{protocol.PortAny},
    }, &pc)

    var home protocol.CreateSessionReply
    watcher.request(protocol.MsgCreateSession, &protocol.CreateSessionRequest{}, &home)
    var wc protocol.ClaimPortsReply
    watcher.request(protocol.MsgClaimPorts, &protocol.ClaimPortsRequest{
        SessionID:      home.SessionID,
        RequestedPorts: [4]protocol.Port{protocol.PortAny},
    }, &wc)

    var spec protocol.SpectateReply
    watcher.request(protocol.MsgSpectate, &protocol.SpectateRequest{
        SessionID:     target.SessionID,
        HomeSessionID: home.SessionID,
        ConnectionID:  wc.ConnectionID,
    }, &spec)
    if spec.Status != protocol.StatusSuccess { t.Fatalf("spectate: %#v", spec) }

    watcher.sendEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: home.SessionID, ConnectionID: wc.ConnectionID}})
    player.sendEvent(&protocol.Event{ClientReady: &protocol.ClientReady{SessionID: target.SessionID, ConnectionID: pc.ConnectionID}})
    watcher.ping()
    player.ping()

    player.sendEvent(&protocol.Event{KeyPresses: []protocol.KeyState{{
        SessionID: target.SessionID, Port: pc.Ports[0], FrameNumber: 3, Buttons: 0x10,
    }}})
    ev := watcher.waitEvent()
    if len(ev.KeyPresses) != 1 || ev.KeyPresses[0].FrameNumber != 3 {
        t.Fatalf("spectator feed: %#v", ev)
    }
}
