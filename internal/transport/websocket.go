package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/wirepeer/internal/util"
)

const (
	// DefaultPingInterval is how often the WebSocket Transport emits the
	// literal "ping" liveness frame.
	DefaultPingInterval = 20 * time.Second
	// DefaultPingTimeout is how long the Transport waits for a "pong"
	// reply before treating the connection as dead (spec §4.5).
	DefaultPingTimeout = 10 * time.Second
)

var (
	pingFrame = []byte("ping")
	pongFrame = []byte("pong")
)

// WebSocket wraps a *websocket.Conn as a Transport, adding application-level
// ping/pong liveness on top of whatever the WS library does at the
// protocol-frame level. The literal text frames "ping" and "pong" are
// reserved (spec §6); JSON RPC frames can never equal them because the
// message codec refuses to produce them.
type WebSocket struct {
	conn *websocket.Conn

	pingInterval time.Duration
	pingTimeout  time.Duration

	writeMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	onClose   CloseHandler
	onMessage MessageHandler
	onPong    PongHandler

	pingTimer *time.Timer
	stopPing  chan struct{}
	closeOnce sync.Once
}

// NewWebSocket wraps conn and starts the read loop and ping ticker. Call
// OnClose/OnMessage/OnPong before traffic is expected, the same way the
// Peer engine's attachment state machine does (spec §4.4).
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return NewWebSocketWithLiveness(conn, DefaultPingInterval, DefaultPingTimeout)
}

// NewWebSocketWithLiveness is NewWebSocket with explicit ping tuning.
// pingInterval <= 0 disables outbound pings (liveness becomes purely
// receive-driven).
func NewWebSocketWithLiveness(conn *websocket.Conn, pingInterval, pingTimeout time.Duration) *WebSocket {
	w := &WebSocket{
		conn:         conn,
		pingInterval: pingInterval,
		pingTimeout:  pingTimeout,
		stopPing:     make(chan struct{}),
	}
	go w.readLoop()
	if pingInterval > 0 {
		go w.pingLoop()
	}
	return w
}

func (w *WebSocket) readLoop() {
	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			w.handleConnClosed(err)
			return
		}
		if kind == websocket.BinaryMessage {
			util.LogWarning("websocket transport: dropping unexpected binary frame (%d bytes)", len(data))
			continue
		}

		switch string(data) {
		case "pong":
			w.armPingTimer(false)
			w.mu.Lock()
			onPong := w.onPong
			w.mu.Unlock()
			if onPong != nil {
				onPong()
			}
		case "ping":
			_ = w.writeRaw(websocket.TextMessage, pongFrame)
		default:
			w.mu.Lock()
			onMessage := w.onMessage
			w.mu.Unlock()
			if onMessage != nil {
				onMessage(data)
			}
		}
	}
}

func (w *WebSocket) pingLoop() {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.writeRaw(websocket.TextMessage, pingFrame); err != nil {
				return
			}
			w.armPingTimer(true)
		case <-w.stopPing:
			return
		}
	}
}

// armPingTimer (re)starts the ping-timeout watchdog when arm is true, or
// cancels it when a pong arrives (arm is false).
func (w *WebSocket) armPingTimer(arm bool) {
	w.mu.Lock()
	if w.pingTimer != nil {
		w.pingTimer.Stop()
		w.pingTimer = nil
	}
	if arm {
		w.pingTimer = time.AfterFunc(w.pingTimeout, func() {
			util.LogWarning("websocket transport: ping timeout, dropping connection")
			w.Close(1006, "ping timeout")
		})
	}
	w.mu.Unlock()
}

func (w *WebSocket) handleConnClosed(err error) {
	code, reason := 1006, "abnormal closure"
	if ce, ok := err.(*websocket.CloseError); ok {
		code, reason = ce.Code, ce.Text
	}
	w.finish(code, reason)
}

// finish runs the terminal close bookkeeping exactly once.
func (w *WebSocket) finish(code int, reason string) {
	w.closeOnce.Do(func() {
		close(w.stopPing)
		w.mu.Lock()
		w.closed = true
		onClose := w.onClose
		w.mu.Unlock()

		w.conn.Close()

		if onClose != nil {
			onClose(code, reason)
		}
	})
}

func (w *WebSocket) writeRaw(kind int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(kind, data)
}

// Send implements Transport.
func (w *WebSocket) Send(raw []byte) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return errTransportClosed
	}
	return w.writeRaw(websocket.TextMessage, raw)
}

// Close implements Transport: an idempotent hard close.
func (w *WebSocket) Close(code int, reason string) {
	w.writeRaw(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	w.finish(code, reason)
}

// Drop implements Transport: a soft close for transport swap (spec §4.5).
func (w *WebSocket) Drop() {
	w.writeRaw(websocket.CloseMessage, websocket.FormatCloseMessage(4001, "reconnecting"))
	w.finish(4001, "reconnecting")
}

// Closed implements Transport.
func (w *WebSocket) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// OnClose implements Transport.
func (w *WebSocket) OnClose(fn CloseHandler) {
	w.mu.Lock()
	w.onClose = fn
	w.mu.Unlock()
}

// OnMessage implements Transport.
func (w *WebSocket) OnMessage(fn MessageHandler) {
	w.mu.Lock()
	w.onMessage = fn
	w.mu.Unlock()
}

// OnPong implements Transport.
func (w *WebSocket) OnPong(fn PongHandler) {
	w.mu.Lock()
	w.onPong = fn
	w.mu.Unlock()
}

var _ Transport = (*WebSocket)(nil)
