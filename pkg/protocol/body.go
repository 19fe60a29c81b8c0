package protocol

import (
    "errors"
    "fmt"

    "netplayd/pkg/protocol/codec"
)

// Format tags the encoding of an envelope body. It travels as the first
// payload byte so a peer can decode without out-of-band negotiation: the
// server answers in the format it prefers (CBOR) while debug tooling may
// submit JSON.
type Format uint8

const (
    FormatUnknown Format = iota
    FormatJSON
    FormatCBOR
    FormatProto
)

// String returns the matching content type, ContentUnknown for junk values.
func (f Format) String() string {
    switch f {
    case FormatJSON:
        return ContentJSON
    case FormatCBOR:
        return ContentCBOR
    case FormatProto:
        return ContentProto
    default:
        return ContentUnknown
    }
}

// CodecFor resolves f against the registry, falling back to a freshly built
// codec when the registry was constructed without one.
func CodecFor(r *codec.Registry, f Format) (codec.Codec, error) {
    if c := r.Get(f.String()); c != nil { return c, nil }
    switch f {
    case FormatJSON:
        return codec.JSON(), nil
    case FormatCBOR:
        return codec.CBOR()
    case FormatProto:
        return codec.Proto(), nil
    default:
        return nil, fmt.Errorf("protocol: no codec for format %d", f)
    }
}

// EncodeBody marshals v and prepends the format byte. The result goes into
// Envelope.Payload as-is.
func EncodeBody(r *codec.Registry, f Format, v any) ([]byte, error) {
    c, err := CodecFor(r, f)
    if err != nil { return nil, err }
    b, err := c.Marshal(v)
    if err != nil { return nil, err }
    return append([]byte{byte(f)}, b...), nil
}

// DecodeBody unmarshals a payload produced by EncodeBody into v and reports
// which format the sender used.
func DecodeBody(r *codec.Registry, payload []byte, v any) (Format, error) {
    if len(payload) == 0 {
        return FormatUnknown, errors.New("protocol: body missing format byte")
    }
    f := Format(payload[0])
    c, err := CodecFor(r, f)
    if err != nil { return f, err }
    if err := c.Unmarshal(payload[1:], v); err != nil { return f, err }
    return f, nil
}
