package transport

import (
	"context"
	"sync"

	pionwebrtc "github.com/pion/webrtc/v4"

	rtc "github.com/1ureka/wirepeer/internal/webrtc"
)

// WebRTC implements Transport over a pre-negotiated, ordered WebRTC
// DataChannel. It exists alongside WebSocket to demonstrate that the Peer
// engine's Transport contract is genuinely pluggable (spec §4.5, §6). An
// inbound "ping" frame is answered with "pong" and an inbound "pong" is
// surfaced to the pong handler, as over WebSocket; this Transport sends no
// pings of its own and has no ping-timeout watchdog.
type WebRTC struct {
	pc *pionwebrtc.PeerConnection
	dc *rtc.DataChannel

	ctx    context.Context
	cancel context.CancelFunc

	openSignal chan struct{}
	openOnce   sync.Once

	mu            sync.Mutex
	closed        bool
	pendingCode   int
	pendingReason string
	onClose       CloseHandler
	onMessage     MessageHandler
	onPong        PongHandler
}

// NewWebRTC wraps an already-created PeerConnection/DataChannel pair — the
// caller (internal/signaling) is responsible for the SDP/ICE exchange that
// brings the DataChannel to the open state.
func NewWebRTC(parent context.Context, pc *pionwebrtc.PeerConnection, raw *pionwebrtc.DataChannel) *WebRTC {
	ctx, cancel := context.WithCancel(parent)

	w := &WebRTC{
		pc:         pc,
		dc:         rtc.NewDataChannel(raw),
		ctx:        ctx,
		cancel:     cancel,
		openSignal: make(chan struct{}),
	}

	raw.OnOpen(func() {
		w.openOnce.Do(func() { close(w.openSignal) })
	})

	raw.OnClose(func() {
		w.mu.Lock()
		code, reason := w.pendingCode, w.pendingReason
		if code == 0 {
			code, reason = 1006, "webrtc datachannel closed"
		}
		w.closed = true
		onClose := w.onClose
		w.mu.Unlock()

		w.cancel()
		if onClose != nil {
			onClose(code, reason)
		}
	})

	w.dc.OnMessage(func(raw []byte) {
		switch string(raw) {
		case "pong":
			w.mu.Lock()
			onPong := w.onPong
			w.mu.Unlock()
			if onPong != nil {
				onPong()
			}
		case "ping":
			_ = w.Send([]byte("pong"))
		default:
			w.mu.Lock()
			onMessage := w.onMessage
			w.mu.Unlock()
			if onMessage != nil {
				onMessage(raw)
			}
		}
	})

	return w
}

// Ready returns a channel closed once the DataChannel has opened.
func (w *WebRTC) Ready() <-chan struct{} { return w.openSignal }

// PeerConnection exposes the underlying PeerConnection for signaling.
func (w *WebRTC) PeerConnection() *pionwebrtc.PeerConnection { return w.pc }

// Send implements Transport.
func (w *WebRTC) Send(raw []byte) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return errTransportClosed
	}
	return w.dc.Send(w.ctx, raw)
}

// Close implements Transport: an idempotent hard close.
func (w *WebRTC) Close(code int, reason string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pendingCode, w.pendingReason = code, reason
	w.mu.Unlock()

	w.dc.Raw().Close()
	w.pc.Close()
}

// Drop implements Transport: a soft close for transport swap.
func (w *WebRTC) Drop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pendingCode, w.pendingReason = 4001, "reconnecting"
	w.mu.Unlock()

	w.dc.Raw().Close()
	w.pc.Close()
}

// Closed implements Transport.
func (w *WebRTC) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// OnClose implements Transport.
func (w *WebRTC) OnClose(fn CloseHandler) {
	w.mu.Lock()
	w.onClose = fn
	w.mu.Unlock()
}

// OnMessage implements Transport.
func (w *WebRTC) OnMessage(fn MessageHandler) {
	w.mu.Lock()
	w.onMessage = fn
	w.mu.Unlock()
}

// OnPong implements Transport.
func (w *WebRTC) OnPong(fn PongHandler) {
	w.mu.Lock()
	w.onPong = fn
	w.mu.Unlock()
}

var _ Transport = (*WebRTC)(nil)
