package message

import "errors"

// errReservedPayload is returned when a caller's data argument would
// encode to exactly "ping" or "pong", colliding with the reserved
// liveness frames.
var errReservedPayload = errors.New("message: payload collides with reserved ping/pong frame")
