package protocol

import "netplayd/pkg/protocol/codec"

// NewEnvelopeWithBody builds an envelope carrying v encoded per format.
// PayloadLen is kept consistent with the encoded body.
func NewEnvelopeWithBody(h Header, format Format, v any, reg *codec.Registry) (Envelope, error) {
    b, err := EncodeBody(reg, format, v)
    if err != nil { return Envelope{}, err }
    e := Envelope{Header: h, Payload: b}
    e.Header.PayloadLen = uint32(len(b))
    return e, nil
}

// DecodeEnvelopeBody unmarshals e's payload into v, trusting the embedded
// format byte over any out-of-band hint.
func DecodeEnvelopeBody(e *Envelope, v any, reg *codec.Registry) (Format, error) {
    return DecodeBody(reg, e.Payload, v)
}

// ReplyHeader derives the header for answering req: same type, reply flag
// set, correlation and session routing echoed back.
func ReplyHeader(req Header) Header {
    return Header{
        Version:     Version,
        Type:        req.Type,
        Flags:       FlagReply,
        Correlation: req.Correlation,
        SessionID:   req.SessionID,
    }
}
