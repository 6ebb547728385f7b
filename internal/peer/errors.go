package peer

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Request/Notify once the Peer is closed, and is
// the reason every pending request settles with on close or transport
// swap (spec §4.3, §7.4).
var ErrClosed = errors.New("peer closed")

// ErrRequestTimeout is returned when a request's pending-table timer
// fires before a matching response arrives (spec §7.3).
var ErrRequestTimeout = errors.New("request timeout")

// errAlreadyReplied guards a Responder against sending a second reply for
// the same inbound request.
var errAlreadyReplied = errors.New("peer: request already replied to")

// RemoteError wraps an error response's numeric code and textual reason
// (spec §7.2).
type RemoteError struct {
	Code   int32
	Reason string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Reason)
}
