// Package session holds the netplay coordination core: the bounded session
// registry, per-session port allocation, the client connection state machine,
// the readiness barrier, and input relay between connected clients.
//
// Lock ordering: Session.mu may be taken before Connection.mu, never the
// reverse.
package session
