package transport

import (
    "encoding/binary"
    "fmt"
    "io"
    "sync"
)

// MaxFrameSize bounds a single message frame on byte-stream transports.
// Netplay payloads are small; anything near this limit is garbage.
const MaxFrameSize = 1 << 24

// FramedStream adapts a raw byte stream into a message Stream using a
// u32 little-endian length prefix per frame.
type FramedStream struct {
    rw  io.ReadWriteCloser
    wmu sync.Mutex
    rmu sync.Mutex
}

func NewFramedStream(rw io.ReadWriteCloser) *FramedStream {
    return &FramedStream{rw: rw}
}

func (s *FramedStream) SendBytes(b []byte) error {
    if len(b) > MaxFrameSize { return fmt.Errorf("transport: frame too large: %d", len(b)) }
    s.wmu.Lock()
    defer s.wmu.Unlock()
    var hdr [4]byte
    binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
    if _, err := s.rw.Write(hdr[:]); err != nil { return err }
    _, err := s.rw.Write(b)
    return err
}

func (s *FramedStream) RecvBytes() ([]byte, error) {
    s.rmu.Lock()
    defer s.rmu.Unlock()
    var hdr [4]byte
    if _, err := io.ReadFull(s.rw, hdr[:]); err != nil { return nil, err }
    n := binary.LittleEndian.Uint32(hdr[:])
    if n > MaxFrameSize { return nil, fmt.Errorf("transport: frame too large: %d", n) }
    buf := make([]byte, n)
    if _, err := io.ReadFull(s.rw, buf); err != nil { return nil, err }
    return buf, nil
}

func (s *FramedStream) Close() error { return s.rw.Close() }
