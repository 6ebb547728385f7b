package peer

import (
	"fmt"
	"sync/atomic"

	"github.com/1ureka/wirepeer/internal/message"
)

// Responder lets a RequestHandler send exactly one reply for its inbound
// request. Accept/Reject/RejectCode map to the wire's success/error
// response (spec §4.3); the polymorphic `reject(code, reason)` from the
// source spec becomes these two explicit methods (spec §9).
type Responder struct {
	p   *Peer
	req message.Message

	replied atomic.Bool
}

// Accept sends a success response carrying data (which may be nil).
func (r *Responder) Accept(data any) error {
	if !r.replied.CompareAndSwap(false, true) {
		return errAlreadyReplied
	}
	resp, err := message.CreateSuccessResponse(r.req, data)
	if err != nil {
		return err
	}
	return r.p.sendMessage(resp)
}

// Reject sends an error response with code 500 and reason err.Error().
func (r *Responder) Reject(err error) error {
	return r.RejectCode(500, err)
}

// RejectCode sends an error response with an explicit numeric code.
func (r *Responder) RejectCode(code int32, err error) error {
	if !r.replied.CompareAndSwap(false, true) {
		return errAlreadyReplied
	}
	resp := message.CreateErrorResponse(r.req, code, err.Error())
	return r.p.sendMessage(resp)
}

// rejectRecovered is used internally to convert a panic inside a
// RequestHandler into a code-500 error response.
func (r *Responder) rejectRecovered(recovered any) {
	_ = r.RejectCode(500, fmt.Errorf("%v", recovered))
}
