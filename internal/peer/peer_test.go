package peer

import (
	"encoding/json"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1ureka/wirepeer/internal/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*mockTransport)(nil)

// mockTransport implements transport.Transport for in-process testing. Two
// linked mockTransport instances simulate a duplex wire: frames sent by one
// side are delivered to the other side's OnMessage handler after a random
// delay in [0, 20ms), exercising the same kind of reordering-by-delay the
// real WebSocket/WebRTC transports never exhibit but a careful Peer
// implementation must not depend on the absence of.
type mockTransport struct {
	peer *mockTransport

	mu        sync.Mutex
	closed    bool
	onClose   transport.CloseHandler
	onMessage transport.MessageHandler
	onPong    transport.PongHandler
}

// linkedMockTransports creates a connected pair.
func linkedMockTransports() (a, b *mockTransport) {
	a = &mockTransport{}
	b = &mockTransport{}
	a.peer, b.peer = b, a
	return a, b
}

func (m *mockTransport) Send(raw []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errMockClosed
	}
	go func() {
		time.Sleep(time.Duration(rand.Int64N(20)) * time.Millisecond)
		m.peer.deliver(raw)
	}()
	return nil
}

func (m *mockTransport) deliver(raw []byte) {
	m.mu.Lock()
	closed := m.closed
	fn := m.onMessage
	m.mu.Unlock()
	if closed || fn == nil {
		return
	}
	fn(raw)
}

func (m *mockTransport) Close(code int, reason string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	fn := m.onClose
	m.mu.Unlock()
	if fn != nil {
		fn(code, reason)
	}
}

func (m *mockTransport) Drop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	fn := m.onClose
	m.mu.Unlock()
	if fn != nil {
		fn(4001, "reconnecting")
	}
}

func (m *mockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockTransport) OnClose(fn transport.CloseHandler) {
	m.mu.Lock()
	m.onClose = fn
	m.mu.Unlock()
}

func (m *mockTransport) OnMessage(fn transport.MessageHandler) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

func (m *mockTransport) OnPong(fn transport.PongHandler) {
	m.mu.Lock()
	m.onPong = fn
	m.mu.Unlock()
}

func (m *mockTransport) sendPong() {
	m.mu.Lock()
	fn := m.peer.onPong
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

var errMockClosed = errClosedMock{}

type errClosedMock struct{}

func (errClosedMock) Error() string { return "mock transport closed" }

// TestRequestHappyPath exercises a full request/accept round trip.
func TestRequestHappyPath(t *testing.T) {
	trA, trB := linkedMockTransports()
	a := New("a", trA)
	b := New("b", trB)
	defer a.CloseDefault()
	defer b.CloseDefault()

	b.OnRequest(func(req Request, reply *Responder) {
		var n int
		_ = json.Unmarshal(req.Data, &n)
		_ = reply.Accept(n * 2)
	})

	data, err := a.Request("double", 21)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	var got int
	if err := json.Unmarshal(data, &got); err != nil || got != 42 {
		t.Fatalf("unexpected response data: %s, err=%v", data, err)
	}
}

// TestRequestErrorReply verifies RemoteError surfaces the reject code/reason.
func TestRequestErrorReply(t *testing.T) {
	trA, trB := linkedMockTransports()
	a := New("a", trA)
	b := New("b", trB)
	defer a.CloseDefault()
	defer b.CloseDefault()

	b.OnRequest(func(req Request, reply *Responder) {
		_ = reply.RejectCode(404, errNotFound)
	})

	_, err := a.Request("missing", nil)
	remote, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if remote.Code != 404 {
		t.Fatalf("expected code 404, got %d", remote.Code)
	}
}

var errNotFound = notFoundErr{}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

// TestRequestTimeoutNeverResolvesOnSilence checks that a request to a
// silent peer is still outstanding after a short wait and is not resolved
// by that silence. The registration-time timeout (30s or more) cannot be
// shrunk from the test, so settling with ErrRequestTimeout is not
// exercised here; internal/pending's tests check the formula's values.
func TestRequestTimeoutNeverResolvesOnSilence(t *testing.T) {
	trA, trB := linkedMockTransports()
	a := New("a", trA)
	b := New("b", trB)
	defer a.CloseDefault()
	defer b.CloseDefault()

	b.OnRequest(func(req Request, reply *Responder) {
		// Deliberately never replies.
	})

	done := make(chan struct{})
	go func() {
		_, _ = a.Request("silence", nil)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("request settled before any reply or timeout could plausibly occur")
	case <-time.After(200 * time.Millisecond):
	}
}

// TestCloseRejectsPendingRequests verifies Close drains the pending table
// with ErrClosed for any in-flight request.
func TestCloseRejectsPendingRequests(t *testing.T) {
	trA, trB := linkedMockTransports()
	a := New("a", trA)
	b := New("b", trB)
	defer b.CloseDefault()

	b.OnRequest(func(req Request, reply *Responder) {
		// never replies; Close below must still settle the caller.
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Request("stuck", nil)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	a.Close(4000, "test close")

	select {
	case err := <-errCh:
		if err != ErrClosed {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("request never settled after Close")
	}
}

// TestSetNewTransportPreservesIdentityAndDrainsPending verifies that a
// transport swap keeps the Peer's id and handlers intact, rejects
// in-flight requests, and lets new requests succeed on the new transport.
func TestSetNewTransportPreservesIdentityAndDrainsPending(t *testing.T) {
	trA1, trB1 := linkedMockTransports()
	a := New("stable-id", trA1)
	b := New("b", trB1)
	defer a.CloseDefault()
	defer b.CloseDefault()

	// b never replies, so the in-flight request is still pending at the
	// moment the transport is swapped.
	b.OnRequest(func(req Request, reply *Responder) {})

	stuckErrCh := make(chan error, 1)
	go func() {
		_, err := a.Request("will-be-orphaned", nil)
		stuckErrCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	trA2, trB2 := linkedMockTransports()
	a.SetNewTransport(trA2)
	b.SetNewTransport(trB2)

	select {
	case err := <-stuckErrCh:
		if err != ErrClosed {
			t.Fatalf("expected orphaned request to reject with ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("orphaned request never settled after transport swap")
	}

	if a.ID() != "stable-id" {
		t.Fatalf("expected id to survive transport swap, got %q", a.ID())
	}

	b.OnRequest(func(req Request, reply *Responder) {
		_ = reply.Accept("second-gen")
	})
	data, err := a.Request("after-swap", nil)
	if err != nil {
		t.Fatalf("Request after swap: %v", err)
	}
	var got string
	if err := json.Unmarshal(data, &got); err != nil || got != "second-gen" {
		t.Fatalf("unexpected post-swap response: %s", data)
	}
}

// TestAlreadyClosedTransportDefersCloseEmission verifies attach()'s deferred
// emission path for a Transport that is already closed when New is called:
// the close event must reach whichever OnClose handler registers first, with
// no dependency on goroutine-scheduling order relative to the caller's next
// statement after New returns.
func TestAlreadyClosedTransportDefersCloseEmission(t *testing.T) {
	tr := &mockTransport{closed: true}

	var gotCode int
	var gotReason string
	var emitted bool

	p := New("x", tr)
	// No sleep, no channel wait: delivery must happen synchronously inside
	// this OnClose call, exactly the pattern cmd/peerctl uses right after
	// New returns.
	p.OnClose(func(code int, reason string) {
		gotCode, gotReason = code, reason
		emitted = true
	})

	if !emitted {
		t.Fatalf("close event was not delivered synchronously on OnClose registration")
	}
	if gotCode != 1006 || gotReason != "transport already closed" {
		t.Fatalf("unexpected close event: code=%d reason=%q", gotCode, gotReason)
	}
}

// TestAlreadyClosedTransportEmitsExactlyOnce guards against a double
// delivery if OnClose is somehow registered twice or Close is called after
// the deferred event has already gone out.
func TestAlreadyClosedTransportEmitsExactlyOnce(t *testing.T) {
	tr := &mockTransport{closed: true}
	p := New("x", tr)

	var calls int32
	p.OnClose(func(code int, reason string) {
		atomic.AddInt32(&calls, 1)
	})
	p.Close(4000, "ignored: already closed at attach time")
	p.OnClose(func(code int, reason string) {
		atomic.AddInt32(&calls, 1)
	})

	if calls != 1 {
		t.Fatalf("expected exactly one close emission, got %d", calls)
	}
}

// TestRequestDuringReconnectingIsSilent verifies the resolved open question:
// Request/Notify during a soft disconnect return (nil, nil)/nil without
// sending.
func TestRequestDuringReconnectingIsSilent(t *testing.T) {
	trA, trB := linkedMockTransports()
	a := New("a", trA)
	defer a.CloseDefault()
	_ = New("b", trB)

	trA.Drop() // simulates the peer side dropping mid-swap

	data, err := a.Request("noop", nil)
	if data != nil || err != nil {
		t.Fatalf("expected (nil, nil) while reconnecting, got data=%v err=%v", data, err)
	}

	if err := a.Notify("noop", nil); err != nil {
		t.Fatalf("expected nil error from Notify while reconnecting, got %v", err)
	}
}
