package transport

import (
    "fmt"
    "net"
)

// TempPeerID builds a temporary peer id from transport kind and remote
// address. A netplay client stays anonymous at the transport layer; its
// logical identity arrives later in the ready handshake.
func TempPeerID(kind Kind, addr net.Addr) PeerID {
    if addr == nil { return PeerID(fmt.Sprintf("temp:%s:unknown", kind)) }
    return PeerID(fmt.Sprintf("temp:%s:%s", kind, addr.String()))
}
