// Package message defines the wire shape of the three RPC message kinds —
// request, response, notification — and the pure codec that encodes and
// parses them. The codec has no I/O and no state beyond the request-id
// generator.
package message

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
)

// Kind classifies a parsed Message by which tag field was present.
type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
	KindNotification
)

// Message is the logical shape of a single RPC frame. Only the fields
// relevant to its Kind are populated; the others are left zero.
type Message struct {
	Kind Kind

	// Request
	ID     uint32
	Method string
	Data   json.RawMessage

	// Response
	OK          bool
	ErrorCode   int32
	ErrorReason string
}

// wireMessage is the JSON-serializable form. Exactly one of Request,
// Response, Notification is true/non-empty for a given Kind; the others
// are omitted so parse can classify by presence. OK is a pointer so a
// response always carries it (true or false alike), while requests and
// notifications omit it entirely — a plain bool's `omitempty` would drop
// `"ok":false` from every error response, which is the common case, not
// the edge case.
type wireMessage struct {
	Request      bool            `json:"request,omitempty"`
	Response     bool            `json:"response,omitempty"`
	Notification bool            `json:"notification,omitempty"`
	OK           *bool           `json:"ok,omitempty"`
	ID           uint32          `json:"id,omitempty"`
	Method       string          `json:"method,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    int32           `json:"errorCode,omitempty"`
	ErrorReason  string          `json:"errorReason,omitempty"`
}

// reservedFrame is the literal text reserved for liveness frames. A JSON
// payload that encodes to exactly one of these two byte strings would be
// indistinguishable from a ping/pong frame on the wire, so the codec
// refuses to produce or accept it (spec §9 open question).
func reservedFrame(b []byte) bool {
	return string(b) == "ping" || string(b) == "pong"
}

// nextID returns a fresh, randomly chosen 32-bit request id. Uniqueness is
// only required within the set of a single peer's outstanding requests, so
// a random draw is sufficient and avoids any shared generator state.
func nextID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// CreateRequest builds a request Message with a fresh id. data may be nil.
func CreateRequest(method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindRequest, ID: nextID(), Method: method, Data: raw}, nil
}

// CreateNotification builds a notification Message. data may be nil.
func CreateNotification(method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindNotification, Method: method, Data: raw}, nil
}

// CreateSuccessResponse builds an ok response copying the request's id.
func CreateSuccessResponse(req Message, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindResponse, ID: req.ID, OK: true, Data: raw}, nil
}

// CreateErrorResponse builds a failing response copying the request's id.
func CreateErrorResponse(req Message, code int32, reason string) Message {
	return Message{Kind: KindResponse, ID: req.ID, OK: false, ErrorCode: code, ErrorReason: reason}
}

func marshalData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	// A data value equal to the string "ping" or "pong" is refused along
	// with the bare literals themselves.
	reserved := func(b []byte) bool {
		s := string(b)
		return reservedFrame(b) || s == `"ping"` || s == `"pong"`
	}
	if raw, ok := data.(json.RawMessage); ok {
		if reserved(raw) {
			return nil, errReservedPayload
		}
		return raw, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if reserved(b) {
		return nil, errReservedPayload
	}
	return b, nil
}

// Encode serializes a Message to its wire-level JSON text frame.
func Encode(m Message) ([]byte, error) {
	w := wireMessage{
		ID:          m.ID,
		Method:      m.Method,
		Data:        m.Data,
		ErrorCode:   m.ErrorCode,
		ErrorReason: m.ErrorReason,
	}
	switch m.Kind {
	case KindRequest:
		w.Request = true
	case KindResponse:
		w.Response = true
		ok := m.OK
		w.OK = &ok
	case KindNotification:
		w.Notification = true
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	if reservedFrame(b) {
		return nil, errReservedPayload
	}
	return b, nil
}

// Parse decodes a wire text frame into a Message. It returns ok=false for
// any malformed frame: invalid JSON, none or more than one tag field set,
// a response without "ok", an error response without errorReason, or a
// frame that is exactly one of the reserved ping/pong literals. A missing
// errorCode is not detected: it parses as code 0. Malformed frames are
// never an error to the caller — they are simply dropped (spec §7.5).
func Parse(text []byte) (Message, bool) {
	if reservedFrame(text) {
		return Message{}, false
	}

	var w wireMessage
	if err := json.Unmarshal(text, &w); err != nil {
		return Message{}, false
	}

	tags := 0
	if w.Request {
		tags++
	}
	if w.Response {
		tags++
	}
	if w.Notification {
		tags++
	}
	if tags != 1 {
		return Message{}, false
	}

	m := Message{
		ID:     w.ID,
		Method: w.Method,
		Data:   w.Data,
	}

	switch {
	case w.Request:
		m.Kind = KindRequest
	case w.Notification:
		m.Kind = KindNotification
	case w.Response:
		if w.OK == nil {
			return Message{}, false
		}
		m.Kind = KindResponse
		m.OK = *w.OK
		if !m.OK {
			if w.ErrorReason == "" {
				return Message{}, false
			}
			m.ErrorCode = w.ErrorCode
			m.ErrorReason = w.ErrorReason
		}
	}

	return m, true
}
