package protocol

import (
    "encoding/binary"
    "errors"
)

// Fixed header layout (48 bytes) for fast parsing over any channel.
// All integer fields are little-endian.
//
//  0  ..1   Magic   'N''P' (0x504e)
//  2        Version u8
//  3        Type    u8
//  4  ..7   Flags   u32
//  8  ..11  PayloadLen u32
//  12 ..27  CorrelationID [16]byte
//  28 ..35  SessionID u64
//  36 ..43  ConnectionID u64
//  44 ..47  Reserved u32
const (
    headerSize = 48
    magicWord  = uint16(0x504e) // 'N''P'
)

// Version of the wire protocol emitted by this build.
const Version = 1

// Header describes metadata for an envelope. SessionID and ConnectionID are
// routing hints; the authoritative identifiers live in the message bodies.
type Header struct {
    Version      uint8
    Type         uint8
    Flags        uint32
    PayloadLen   uint32
    Correlation  [16]byte
    SessionID    uint64
    ConnectionID uint64
}

// MarshalBinary encodes header to 48-byte buffer.
func (h *Header) MarshalBinary() ([]byte, error) {
    buf := make([]byte, headerSize)
    binary.LittleEndian.PutUint16(buf[0:2], magicWord)
    buf[2] = h.Version
    buf[3] = h.Type
    binary.LittleEndian.PutUint32(buf[4:8], h.Flags)
    binary.LittleEndian.PutUint32(buf[8:12], h.PayloadLen)
    copy(buf[12:28], h.Correlation[:])
    binary.LittleEndian.PutUint64(buf[28:36], h.SessionID)
    binary.LittleEndian.PutUint64(buf[36:44], h.ConnectionID)
    // 44..47 reserved stays zero
    return buf, nil
}

// UnmarshalBinary decodes header from 48-byte buffer.
func (h *Header) UnmarshalBinary(buf []byte) error {
    if len(buf) < headerSize {
        return errors.New("short header")
    }
    if binary.LittleEndian.Uint16(buf[0:2]) != magicWord {
        return errors.New("bad magic")
    }
    h.Version = buf[2]
    h.Type = buf[3]
    h.Flags = binary.LittleEndian.Uint32(buf[4:8])
    h.PayloadLen = binary.LittleEndian.Uint32(buf[8:12])
    copy(h.Correlation[:], buf[12:28])
    h.SessionID = binary.LittleEndian.Uint64(buf[28:36])
    h.ConnectionID = binary.LittleEndian.Uint64(buf[36:44])
    return nil
}
