// Package transport defines the duplex capability the Peer engine owns and
// consumes (spec §6), plus two reference implementations: a WebSocket
// Transport (the typical case) and a WebRTC DataChannel Transport (proving
// the interface is genuinely pluggable).
package transport

// CloseHandler is invoked when the Transport goes down, hard or soft. The
// Peer engine — not the Transport — decides whether a given invocation
// represents a soft disconnect (code 4001, or reason "Connection dropped
// by remote peer.") or a hard close (spec §4.4).
type CloseHandler func(code int, reason string)

// MessageHandler is invoked once per inbound text frame, in arrival order.
type MessageHandler func(raw []byte)

// PongHandler is invoked when the Transport observes a liveness reply.
type PongHandler func()

// Transport is the duplex channel a Peer owns exclusively at any given
// time. Implementations must deliver inbound frames to the registered
// handlers in arrival order (single-writer-per-transport, spec §5) and
// must serialize concurrent Send calls so frame bytes never interleave.
type Transport interface {
	// Send serializes and transmits one text frame. It may fail if the
	// Transport is already closed or the underlying write fails.
	Send(raw []byte) error

	// Close performs an idempotent hard close, emitting the close handler
	// exactly once — including for a Transport that is already closed at
	// attachment time (the Peer defers that emission, spec §4.4).
	Close(code int, reason string)

	// Drop performs a soft close used during a transport swap: code 4001,
	// reason "reconnecting".
	Drop()

	// Closed reports whether Close has already completed.
	Closed() bool

	// OnClose registers the close handler. At most one is supported; a
	// later call replaces an earlier one.
	OnClose(fn CloseHandler)

	// OnMessage registers the inbound-frame handler.
	OnMessage(fn MessageHandler)

	// OnPong registers the liveness-reply handler.
	OnPong(fn PongHandler)
}
