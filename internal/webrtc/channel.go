package webrtc

import (
	"context"

	"github.com/pion/webrtc/v4"
)

const (
	HighWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	LowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this
)

// DataChannel wraps a pion DataChannel, adding backpressure control for
// sending arbitrary text frames (JSON RPC messages, in practice).
type DataChannel struct {
	raw       *webrtc.DataChannel
	sendReady chan struct{}
}

// NewDataChannel wraps a raw pion DC and arms the backpressure signal.
func NewDataChannel(raw *webrtc.DataChannel) *DataChannel {
	ch := &DataChannel{
		raw:       raw,
		sendReady: make(chan struct{}, 1),
	}

	raw.SetBufferedAmountLowThreshold(uint64(LowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case ch.sendReady <- struct{}{}:
		default:
		}
	})

	return ch
}

// Send transmits a text frame, blocking while bufferedAmount exceeds
// HighWaterMark until it drains below LowWaterMark or ctx is cancelled.
func (c *DataChannel) Send(ctx context.Context, raw []byte) error {
	if c.raw.BufferedAmount() > uint64(HighWaterMark) {
		select {
		case <-c.sendReady:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.raw.SendText(string(raw))
}

// OnMessage registers the inbound text-frame callback.
func (c *DataChannel) OnMessage(fn func(raw []byte)) {
	c.raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

// OnOpen / OnClose / Raw directly proxy the underlying DataChannel.
func (c *DataChannel) OnOpen(fn func())         { c.raw.OnOpen(fn) }
func (c *DataChannel) OnClose(fn func())        { c.raw.OnClose(fn) }
func (c *DataChannel) Raw() *webrtc.DataChannel { return c.raw }
