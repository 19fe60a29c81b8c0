// Package transport defines the canonical transport interfaces for netplayd
// and provides implementations (tcp+yamux, quic, websocket, mem) plus a
// tracker that keeps tabs on live inbound sessions for shutdown.
//
// Key concepts:
// - Transport: dials/listens for Sessions of a specific Kind (TCP/QUIC/WS/mem)
// - Session: a bidirectional connection to a client; may support multiplexed streams
// - Stream: a Send/Recv channel of protocol.Envelope frames
// - Tracker: registry of active sessions so the server can close them all
package transport
