// Package peer implements the bidirectional RPC Peer engine: message
// routing, request/response correlation, request timeouts, connection
// liveness, and transport-swap ("reconnect"), as specified for the core
// of the protocol (spec §4.3–§4.4).
package peer

import (
	"sync"
	"time"

	"github.com/1ureka/wirepeer/internal/message"
	"github.com/1ureka/wirepeer/internal/pending"
	"github.com/1ureka/wirepeer/internal/transport"
	"github.com/1ureka/wirepeer/internal/util"
)

// Option configures a Peer at construction time.
type Option func(*Peer)

// WithIdleTimeout arms the inbound-activity watchdog described in spec
// §4.4: if no message or pong is observed within d, the Peer is closed
// with code 1006. Zero (the default) disables the watchdog.
func WithIdleTimeout(d time.Duration) Option {
	return func(p *Peer) { p.idleTimeout = d }
}

// Peer is one endpoint of an RPC session. It owns exactly one Transport at
// a time and every request it has outstanding on that Transport.
type Peer struct {
	id   string
	data *Bag

	idleTimeout time.Duration

	mu           sync.Mutex
	transport    transport.Transport
	closed       bool
	reconnecting bool
	lastMsgTime  time.Time
	idleTimer    *time.Timer

	pending *pending.Table

	handlersMu   sync.Mutex
	onRequest    RequestHandler
	onNotify     NotificationHandler
	onPong       PongHandler
	onClose      CloseHandler
	closeEmitted bool
	pendingClose *closeEvent
}

// closeEvent records a close that happened before any OnClose handler was
// registered, so it can be delivered to whichever handler registers first
// instead of racing a bare goroutine against the caller's next statement.
type closeEvent struct {
	code   int
	reason string
}

// New constructs a Peer with the given opaque id, attached to tr.
func New(id string, tr transport.Transport, opts ...Option) *Peer {
	p := &Peer{
		id:      id,
		data:    newBag(),
		pending: pending.New(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.mu.Lock()
	p.transport = tr
	p.mu.Unlock()

	p.attach(tr)
	return p
}

// ID returns the Peer's immutable identifier.
func (p *Peer) ID() string { return p.id }

// Data returns the Peer's opaque application-owned key/value bag. The
// returned pointer is stable for the Peer's lifetime (spec §3 invariant 5).
func (p *Peer) Data() *Bag { return p.data }

// Closed reports whether the Peer is closed: by Close, by a hard close of
// its Transport, or by attaching a Transport that was already closed.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// LastMsgTime reports the wall-clock time of the last inbound frame or
// pong, for observational use only.
func (p *Peer) LastMsgTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMsgTime
}

// OnRequest registers the inbound-request handler. A later call replaces
// an earlier one.
func (p *Peer) OnRequest(fn RequestHandler) {
	p.handlersMu.Lock()
	p.onRequest = fn
	p.handlersMu.Unlock()
}

// OnNotification registers the inbound-notification handler.
func (p *Peer) OnNotification(fn NotificationHandler) {
	p.handlersMu.Lock()
	p.onNotify = fn
	p.handlersMu.Unlock()
}

// OnPong registers the liveness-reply handler.
func (p *Peer) OnPong(fn PongHandler) {
	p.handlersMu.Lock()
	p.onPong = fn
	p.handlersMu.Unlock()
}

// OnClose registers the terminal-close handler. If the Peer already has a
// close event waiting to be delivered (the attach-time already-closed
// Transport case, spec §4.4), fn is invoked immediately with it instead of
// being raced against a background goroutine.
func (p *Peer) OnClose(fn CloseHandler) {
	p.handlersMu.Lock()
	p.onClose = fn
	due := p.pendingClose
	alreadyEmitted := p.closeEmitted
	if due != nil && !alreadyEmitted {
		p.closeEmitted = true
	}
	p.handlersMu.Unlock()

	if due != nil && !alreadyEmitted && fn != nil {
		fn(due.code, due.reason)
	}
}

// Request sends a request and blocks until it settles: a matching success
// response resolves with the response's data; a matching error response,
// the pending timer, or a close/swap all reject (spec §4.3).
//
// While the Peer is reconnecting, Request returns (nil, nil) immediately
// without sending — a deliberate silence documented as a resolved open
// question in DESIGN.md.
func (p *Peer) Request(method string, data any) ([]byte, error) {
	p.mu.Lock()
	closed := p.closed
	reconnecting := p.reconnecting
	tr := p.transport
	p.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if reconnecting {
		return nil, nil
	}

	msg, err := message.CreateRequest(method, data)
	if err != nil {
		return nil, err
	}
	raw, err := message.Encode(msg)
	if err != nil {
		return nil, err
	}
	if err := tr.Send(raw); err != nil {
		return nil, err
	}
	util.Stats.AddRequestSent()

	type outcome struct {
		data []byte
		err  error
	}
	resultCh := make(chan outcome, 1)

	p.pending.Register(msg.ID, method,
		func(data []byte) { resultCh <- outcome{data: data} },
		func(err error) { resultCh <- outcome{err: err} },
		func() {
			if e, ok := p.pending.Remove(msg.ID); ok {
				util.Stats.AddTimeout()
				e.Reject(ErrRequestTimeout)
			}
		},
	)

	r := <-resultCh
	return r.data, r.err
}

// Notify sends a notification; it never registers a pending entry and
// never waits for a reply. While reconnecting it returns nil without
// sending.
func (p *Peer) Notify(method string, data any) error {
	p.mu.Lock()
	closed := p.closed
	reconnecting := p.reconnecting
	tr := p.transport
	p.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if reconnecting {
		return nil
	}

	msg, err := message.CreateNotification(method, data)
	if err != nil {
		return err
	}
	raw, err := message.Encode(msg)
	if err != nil {
		return err
	}
	if err := tr.Send(raw); err != nil {
		return err
	}
	util.Stats.AddNotificationSent()
	return nil
}

// Close is idempotent: it marks the Peer closed, cancels the idle
// watchdog, closes the current Transport, rejects every pending request
// with ErrClosed, and emits the close event exactly once (spec §4.3).
func (p *Peer) Close(code int, reason string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.stopIdleTimerLocked()
	tr := p.transport
	p.mu.Unlock()

	p.pending.DrainReject(ErrClosed)
	if tr != nil {
		tr.Close(code, reason)
	}
	p.emitClose(code, reason)
}

// CloseDefault closes the Peer with the spec's default normal-close code
// and reason (spec §4.3).
func (p *Peer) CloseDefault() {
	p.Close(4000, "Normal close by server")
}

// SetNewTransport drops the current Transport (a soft disconnect that does
// not itself emit the close event), rejects every pending request, and
// installs and attaches the new Transport. id, data, and event subscribers
// are preserved (spec §4.3).
func (p *Peer) SetNewTransport(tr transport.Transport) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	old := p.transport
	p.transport = tr
	p.reconnecting = false
	p.mu.Unlock()

	if old != nil {
		old.Drop()
	}
	p.pending.DrainReject(ErrClosed)
	p.attach(tr)
}

// attach wires the Peer's handlers onto tr, implementing the attachment
// state machine of spec §4.4.
func (p *Peer) attach(tr transport.Transport) {
	if tr.Closed() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		// Recorded rather than only emitted here: when attach runs from
		// New there is no OnClose handler yet, so OnClose delivers this the
		// moment one is registered. When a handler is already registered
		// (SetNewTransport with a closed Transport), it is invoked
		// immediately below.
		p.handlersMu.Lock()
		p.pendingClose = &closeEvent{code: 1006, reason: "transport already closed"}
		handler := p.onClose
		alreadyEmitted := p.closeEmitted
		if handler != nil && !alreadyEmitted {
			p.closeEmitted = true
		}
		p.handlersMu.Unlock()

		if handler != nil && !alreadyEmitted {
			handler(1006, "transport already closed")
		}
		return
	}

	tr.OnClose(func(code int, reason string) {
		p.mu.Lock()
		// A Transport that has been swapped out (its Drop reports 4001)
		// no longer drives the Peer's state.
		if p.closed || p.transport != tr {
			p.mu.Unlock()
			return
		}
		if code == 4001 || reason == "Connection dropped by remote peer." {
			p.reconnecting = true
			p.mu.Unlock()
			return
		}
		p.closed = true
		p.stopIdleTimerLocked()
		p.mu.Unlock()

		p.pending.DrainReject(ErrClosed)
		p.emitClose(code, reason)
	})

	tr.OnMessage(func(raw []byte) {
		p.touch()

		msg, ok := message.Parse(raw)
		if !ok {
			util.LogWarning("peer %s: dropping malformed inbound frame", p.id)
			return
		}

		switch msg.Kind {
		case message.KindRequest:
			p.dispatchRequest(msg)
		case message.KindResponse:
			p.dispatchResponse(msg)
		case message.KindNotification:
			p.dispatchNotification(msg)
		}
	})

	tr.OnPong(func() {
		p.touch()
		p.emitPong()
	})

	if p.idleTimeout > 0 {
		p.resetIdleTimer()
	}
}

func (p *Peer) dispatchRequest(msg message.Message) {
	p.handlersMu.Lock()
	handler := p.onRequest
	p.handlersMu.Unlock()

	if handler == nil {
		util.LogWarning("peer %s: no request listener for method %q", p.id, msg.Method)
		return
	}

	reply := &Responder{p: p, req: msg}
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				reply.rejectRecovered(rec)
			}
		}()
		handler(Request{Method: msg.Method, Data: msg.Data}, reply)
	}()
}

func (p *Peer) dispatchNotification(msg message.Message) {
	p.handlersMu.Lock()
	handler := p.onNotify
	p.handlersMu.Unlock()

	util.Stats.AddNotificationRecv()
	if handler == nil {
		util.LogWarning("peer %s: no notification listener for method %q", p.id, msg.Method)
		return
	}
	handler(Notification{Method: msg.Method, Data: msg.Data})
}

func (p *Peer) dispatchResponse(msg message.Message) {
	entry, ok := p.pending.Remove(msg.ID)
	if !ok {
		util.LogDebug("peer %s: dropping response for unknown id %d", p.id, msg.ID)
		return
	}
	util.Stats.AddResponseReceived()
	if msg.OK {
		entry.Resolve(msg.Data)
	} else {
		entry.Reject(&RemoteError{Code: msg.ErrorCode, Reason: msg.ErrorReason})
	}
}

// sendMessage encodes and transmits msg on the current Transport; used by
// Responder to deliver a reply.
func (p *Peer) sendMessage(msg message.Message) error {
	raw, err := message.Encode(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	tr := p.transport
	p.mu.Unlock()
	return tr.Send(raw)
}

func (p *Peer) touch() {
	p.mu.Lock()
	p.lastMsgTime = time.Now()
	idle := p.idleTimeout
	p.mu.Unlock()

	if idle > 0 {
		p.resetIdleTimer()
	}
}

// resetIdleTimer cancels any prior idle timer and arms a fresh one.
func (p *Peer) resetIdleTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.idleTimeout, p.onIdleTimeout)
}

func (p *Peer) stopIdleTimerLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

func (p *Peer) onIdleTimeout() {
	p.mu.Lock()
	tr := p.transport
	p.mu.Unlock()
	if tr != nil {
		tr.Drop()
	}
	p.Close(1006, "Timed out")
}

func (p *Peer) emitClose(code int, reason string) {
	p.handlersMu.Lock()
	handler := p.onClose
	p.handlersMu.Unlock()
	if handler != nil {
		handler(code, reason)
	}
}

func (p *Peer) emitPong() {
	util.Stats.AddPongReceived()
	p.handlersMu.Lock()
	handler := p.onPong
	p.handlersMu.Unlock()
	if handler != nil {
		handler()
	}
}
