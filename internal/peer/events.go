package peer

import "encoding/json"

// Request is the payload of an inbound request event.
type Request struct {
	Method string
	Data   json.RawMessage
}

// Notification is the payload of an inbound notification event.
type Notification struct {
	Method string
	Data   json.RawMessage
}

// RequestHandler is invoked once per inbound request, with a Responder
// used to send exactly one reply. A panic inside the handler is recovered
// by the engine and converted into a code-500 error response (spec §4.3).
type RequestHandler func(req Request, reply *Responder)

// NotificationHandler is invoked once per inbound notification.
type NotificationHandler func(n Notification)

// PongHandler is invoked when a liveness reply is observed.
type PongHandler func()

// CloseHandler is invoked exactly once when the Peer transitions to closed.
type CloseHandler func(code int, reason string)
