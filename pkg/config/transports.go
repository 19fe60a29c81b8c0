package config

// TransportConfig describes one listener the daemon should run.
// Example YAML:
// transports:
//   - kind: tcp
//     listen: 0.0.0.0:7864
//   - kind: quic
//     listen: 0.0.0.0:7865
//   - kind: ws
//     listen: 0.0.0.0:7866
type TransportConfig struct {
    Kind   string         `mapstructure:"kind"`   // tcp | quic | ws | mem
    Listen string         `mapstructure:"listen"` // listen address, transport-specific
    Extra  map[string]any `mapstructure:"extra"`  // kind-specific knobs
}

// DialConfig describes an outbound connection for client tooling.
type DialConfig struct {
    Kind    string `mapstructure:"kind"`
    Address string `mapstructure:"address"`
}
