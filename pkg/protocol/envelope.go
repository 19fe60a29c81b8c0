package protocol

import (
    "fmt"
    "io"

    "github.com/google/uuid"
)

// Envelope is a header + payload wrapper for a single frame transfer.
type Envelope struct {
    Header  Header
    Payload []byte
}

// NewCorrelation generates a random 16-byte id (UUIDv4).
func NewCorrelation() (out [16]byte) {
    return uuid.New()
}

// HasFlag checks whether a flag is set.
func (e *Envelope) HasFlag(flag uint32) bool { return (e.Header.Flags & flag) != 0 }

// SetFlag sets/unsets a flag.
func (e *Envelope) SetFlag(flag uint32, on bool) {
    if on {
        e.Header.Flags |= flag
    } else {
        e.Header.Flags &^= flag
    }
}

// WriteTo writes header + payload to w.
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
    e.Header.PayloadLen = uint32(len(e.Payload))
    hb, err := e.Header.MarshalBinary()
    if err != nil {
        return 0, err
    }
    n1, err := w.Write(hb)
    if err != nil {
        return int64(n1), err
    }
    n2, err := w.Write(e.Payload)
    return int64(n1 + n2), err
}

// ReadFrom reads header + payload from r.
func (e *Envelope) ReadFrom(r io.Reader) (int64, error) {
    hb := make([]byte, headerSize)
    if _, err := io.ReadFull(r, hb); err != nil {
        return 0, err
    }
    if err := e.Header.UnmarshalBinary(hb); err != nil {
        return 0, err
    }
    if e.Header.PayloadLen > 0 {
        if e.Header.PayloadLen > (1<<24) { // keypress frames are small; reject absurd sizes
            return 0, fmt.Errorf("payload too large: %d", e.Header.PayloadLen)
        }
        e.Payload = make([]byte, int(e.Header.PayloadLen))
        if _, err := io.ReadFull(r, e.Payload); err != nil {
            return 0, err
        }
    } else {
        e.Payload = nil
    }
    return int64(headerSize + int(e.Header.PayloadLen)), nil
}

// EncodeFrame returns header+payload as a single byte slice.
func (e *Envelope) EncodeFrame() ([]byte, error) {
    e.Header.PayloadLen = uint32(len(e.Payload))
    hb, err := e.Header.MarshalBinary()
    if err != nil { return nil, err }
    out := make([]byte, headerSize+len(e.Payload))
    copy(out, hb)
    copy(out[headerSize:], e.Payload)
    return out, nil
}

// DecodeFrame parses a single frame from buf.
func (e *Envelope) DecodeFrame(buf []byte) error {
    if len(buf) < headerSize {
        return io.ErrUnexpectedEOF
    }
    if err := e.Header.UnmarshalBinary(buf[:headerSize]); err != nil {
        return err
    }
    need := int(e.Header.PayloadLen)
    if headerSize+need > len(buf) {
        return io.ErrUnexpectedEOF
    }
    e.Payload = append(e.Payload[:0], buf[headerSize:headerSize+need]...)
    return nil
}
