package codec

import (
    "encoding/json"
)

type jsonCodec struct{}

// JSON returns the codec used by operator tooling and log-friendly dumps.
// Gameplay traffic stays on CBOR; JSON exists so a request can be composed
// by hand when debugging a live server.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
