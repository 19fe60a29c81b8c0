package codec

// Codec defines a simple interface for marshaling typed messages.
// Implementations should be deterministic so that frames are byte-stable
// across server and clients.
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs.
type Registry struct { byType map[string]Codec }

// NewRegistry constructs a registry preloaded with built-in codecs
// that don't require initialization: JSON and Protobuf.
func NewRegistry() *Registry {
    r := &Registry{byType: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    return r
}

// Default returns a registry with JSON, Protobuf and CBOR registered.
// CBOR is the default body encoding for netplay messages.
func Default() *Registry {
    r := NewRegistry()
    if c, err := CBOR(); err == nil { r.Register(c) }
    return r
}

// Register adds a codec.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }
