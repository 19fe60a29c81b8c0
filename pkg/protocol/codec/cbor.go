package codec

import (
    cbor "github.com/fxamacker/cbor/v2"
)

type cborCodec struct {
    enc cbor.EncMode
    dec cbor.DecMode
}

// CBOR returns the codec used for gameplay bodies. Encoding is canonical
// (RFC 8949 core profile): every peer produces the same bytes for the same
// message, so frames can be compared and cached by content.
func CBOR() (Codec, error) {
    enc, err := cbor.CanonicalEncOptions().EncMode()
    if err != nil { return nil, err }
    dec, err := cbor.DecOptions{}.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: enc, dec: dec}, nil
}

func (c cborCodec) ContentType() string { return "application/cbor" }

func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
