package protocol

import (
    "bytes"
    "testing"
)

func TestEnvelopeFrameEncodeDecode(t *testing.T) {
    e := Envelope{Header: Header{
        Version:      1,
        Type:         MsgEvent,
        Flags:        FlagReply,
        SessionID:    7,
        ConnectionID: 200,
        Correlation:  NewCorrelation(),
    }}
    e.Payload = []byte("hello")

    frame, err := e.EncodeFrame()
    if err != nil { t.Fatalf("encode: %v", err) }

    var d Envelope
    if err := d.DecodeFrame(frame); err != nil { t.Fatalf("decode: %v", err) }

    if !bytes.Equal(d.Payload, e.Payload) { t.Fatalf("payload mismatch") }
    if d.Header.Type != e.Header.Type || d.Header.Flags != e.Header.Flags ||
        d.Header.SessionID != e.Header.SessionID || d.Header.ConnectionID != e.Header.ConnectionID {
        t.Fatalf("header mismatch")
    }
}

func TestEnvelopeReadWrite(t *testing.T) {
    e := Envelope{Header: Header{Version: 1, Type: MsgPing, Correlation: NewCorrelation()}}
    e.Payload = bytes.Repeat([]byte{0xAB}, 64)

    var buf bytes.Buffer
    if _, err := e.WriteTo(&buf); err != nil { t.Fatalf("write: %v", err) }

    var d Envelope
    if _, err := d.ReadFrom(&buf); err != nil { t.Fatalf("read: %v", err) }
    if !bytes.Equal(d.Payload, e.Payload) { t.Fatalf("payload mismatch") }
    if d.Header.Correlation != e.Header.Correlation { t.Fatalf("correlation mismatch") }
}

func TestReplyHeaderEchoes(t *testing.T) {
    req := Header{
        Version:      1,
        Type:         MsgClaimPorts,
        Correlation:  NewCorrelation(),
        SessionID:    9,
        ConnectionID: 3,
    }
    h := ReplyHeader(req)
    if h.Type != req.Type || h.Flags&FlagReply == 0 {
        t.Fatalf("reply header: %+v", h)
    }
    if h.Correlation != req.Correlation || h.SessionID != req.SessionID {
        t.Fatalf("request identity not echoed: %+v", h)
    }
}

func TestCorrelationUnique(t *testing.T) {
    a := NewCorrelation()
    b := NewCorrelation()
    if a == b { t.Fatalf("correlation ids should differ") }
}
