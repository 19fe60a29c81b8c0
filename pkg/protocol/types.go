package protocol

// Message types (fits in uint8). Requests and their replies share a type;
// a reply carries FlagReply and echoes the request correlation id.
const (
    MsgUnknown uint8 = iota
    MsgPing            // liveness echo
    MsgCreateSession   // allocate a new game session
    MsgClaimPorts      // claim controller ports on a session
    MsgStartGame       // request synchronized game start
    MsgTeardownSession // remove a finished session
    MsgSpectate        // register as a session spectator
    MsgShutdown        // ask a test-mode server to exit
    MsgEvent           // bidirectional gameplay event stream
)

// Flags bitmask (uint32)
const (
    FlagReply      uint32 = 1 << 0 // envelope is a reply to a request
    FlagCompressed uint32 = 1 << 1 // payload compressed
    FlagEncrypted  uint32 = 1 << 2 // payload encrypted
)

// ContentType is optional hint for payload decoding.
// Kept as constants to avoid coupling; not serialized in header.
const (
    ContentUnknown = "application/octet-stream"
    ContentCBOR    = "application/cbor"
    ContentJSON    = "application/json"
    ContentProto   = "application/x-protobuf"
)
