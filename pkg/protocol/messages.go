package protocol

// Message bodies exchanged between netplay clients and the server. Bodies are
// carried in Envelope payloads behind a format byte; CBOR is the default
// encoding, JSON is kept for debugging tools.

// Port addresses one of the four controller slots of a session. A request
// slot may also be PortAny ("give me any free slot") or PortNone ("slot not
// requested").
type Port uint8

const (
    PortNone Port = 0
    Port1    Port = 1
    Port2    Port = 2
    Port3    Port = 3
    Port4    Port = 4
    PortAny  Port = 5
)

// Specific reports whether p names a concrete controller slot.
func (p Port) Specific() bool { return p >= Port1 && p <= Port4 }

func (p Port) String() string {
    switch p {
    case Port1:
        return "port-1"
    case Port2:
        return "port-2"
    case Port3:
        return "port-3"
    case Port4:
        return "port-4"
    case PortAny:
        return "port-any"
    default:
        return "none"
    }
}

// Status is the outcome code carried on replies and invalid-data notices.
// Caller input errors are statuses, never transport faults.
type Status uint8

const (
    StatusUnknown Status = iota
    StatusSuccess
    StatusNoSuchSession
    StatusNoSuchConnection
    StatusNoPortsRequested
    StatusPortRequestRejected
    StatusClientsNotReady
    StatusNotSpectatable
)

func (s Status) String() string {
    switch s {
    case StatusSuccess:
        return "success"
    case StatusNoSuchSession:
        return "no-such-session"
    case StatusNoSuchConnection:
        return "no-such-connection"
    case StatusNoPortsRequested:
        return "no-ports-requested"
    case StatusPortRequestRejected:
        return "port-request-rejected"
    case StatusClientsNotReady:
        return "clients-not-ready"
    case StatusNotSpectatable:
        return "not-spectatable"
    default:
        return "unknown"
    }
}

// Ping echoes back unchanged.
type Ping struct {
    Nonce      uint64 `cbor:"nonce" json:"nonce"`
    SentUnixMs int64  `cbor:"sent_unix_ms" json:"sent_unix_ms"`
}

type CreateSessionRequest struct{}

type CreateSessionReply struct {
    Status    Status `cbor:"status" json:"status"`
    SessionID int64  `cbor:"session_id" json:"session_id"`
}

// ClaimPortsRequest asks for up to four controller slots on a session in one
// atomic allocation. Slots are evaluated in order 1..4.
type ClaimPortsRequest struct {
    SessionID      int64   `cbor:"session_id" json:"session_id"`
    DelayFrames    uint32  `cbor:"delay_frames" json:"delay_frames"`
    RequestedPorts [4]Port `cbor:"requested_ports" json:"requested_ports"`
}

type ClaimPortsReply struct {
    Status       Status `cbor:"status" json:"status"`
    SessionID    int64  `cbor:"session_id" json:"session_id"`
    ConnectionID int64  `cbor:"connection_id,omitempty" json:"connection_id,omitempty"`
    Ports        []Port `cbor:"ports,omitempty" json:"ports,omitempty"`
    // Rejections names every requested-but-unavailable port; an exhausted
    // "any" request is reported as PortAny.
    Rejections []Port `cbor:"rejections,omitempty" json:"rejections,omitempty"`
}

type StartGameRequest struct {
    SessionID int64 `cbor:"session_id" json:"session_id"`
}

type StartGameReply struct {
    Status         Status `cbor:"status" json:"status"`
    SessionID      int64  `cbor:"session_id" json:"session_id"`
    ConnectedPorts []Port `cbor:"connected_ports,omitempty" json:"connected_ports,omitempty"`
}

type TeardownSessionRequest struct {
    SessionID int64 `cbor:"session_id" json:"session_id"`
}

type TeardownSessionReply struct {
    Status    Status `cbor:"status" json:"status"`
    SessionID int64  `cbor:"session_id" json:"session_id"`
}

// SpectateRequest registers the caller's connection as a passive observer of
// another session. The connection must still be in its created state.
type SpectateRequest struct {
    SessionID     int64 `cbor:"session_id" json:"session_id"`
    HomeSessionID int64 `cbor:"home_session_id" json:"home_session_id"`
    ConnectionID  int64 `cbor:"connection_id" json:"connection_id"`
}

type SpectateReply struct {
    Status    Status `cbor:"status" json:"status"`
    SessionID int64  `cbor:"session_id" json:"session_id"`
}

type ShutdownRequest struct{}

type ShutdownReply struct {
    ServerWillDie bool `cbor:"server_will_die" json:"server_will_die"`
}

// KeyState is one controller input sample for one frame.
type KeyState struct {
    SessionID   int64  `cbor:"session_id" json:"session_id"`
    Port        Port   `cbor:"port" json:"port"`
    FrameNumber uint32 `cbor:"frame_number" json:"frame_number"`
    Buttons     uint32 `cbor:"buttons" json:"buttons"`
}

// ClientReady is the mandatory first event on a gameplay stream; it names the
// connection the stream should be bound to.
type ClientReady struct {
    SessionID    int64 `cbor:"session_id" json:"session_id"`
    ConnectionID int64 `cbor:"connection_id" json:"connection_id"`
}

// StartGameNotice is broadcast to every bound connection when the game
// starts. ConnectedPorts lists every claimed slot across the session.
type StartGameNotice struct {
    SessionID      int64  `cbor:"session_id" json:"session_id"`
    ConnectedPorts []Port `cbor:"connected_ports" json:"connected_ports"`
}

// InvalidData reports a protocol-level problem back on the stream that
// caused it (unknown session or connection in a ready declaration).
type InvalidData struct {
    Status Status `cbor:"status" json:"status"`
}

// Event is the single message shape of gameplay streams, in both directions.
// Exactly one group is expected to be populated.
type Event struct {
    ClientReady *ClientReady     `cbor:"client_ready,omitempty" json:"client_ready,omitempty"`
    KeyPresses  []KeyState       `cbor:"key_presses,omitempty" json:"key_presses,omitempty"`
    StartGame   *StartGameNotice `cbor:"start_game,omitempty" json:"start_game,omitempty"`
    Invalid     []InvalidData    `cbor:"invalid,omitempty" json:"invalid,omitempty"`
}
