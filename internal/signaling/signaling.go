// Package signaling orchestrates the one-shot WebSocket handshake that
// stands up the WebRTC variant of a Peer's Transport. Callers receive a
// ready transport.Transport; all SDP/ICE/PIN details stay internal.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"

	"github.com/1ureka/wirepeer/internal/transport"
	"github.com/1ureka/wirepeer/internal/util"
	rtc "github.com/1ureka/wirepeer/internal/webrtc"
)

// EstablishAsHost starts a PIN-protected WebSocket signaling server on a
// random port, waits for one client, negotiates WebRTC, and returns a
// ready Transport plus the PIN the operator must share out of band.
func EstablishAsHost(ctx context.Context) (transport.Transport, string, error) {
	pin := generatePIN(4)

	spinner, _ := pterm.DefaultSpinner.
		WithRemoveWhenDone(true).
		Start("Starting WebSocket signaling server...")

	srv := newServer(pin)
	wsPort, err := srv.start()
	if err != nil {
		spinner.Fail("Failed to start WebSocket server")
		return nil, "", err
	}
	defer srv.close()

	spinner.UpdateText(fmt.Sprintf("WebSocket server listening on port %d (PIN %s) — waiting for client...", wsPort, pin))

	wsConn, err := srv.waitForClient(ctx)
	if err != nil {
		spinner.Fail("Failed while waiting for client connection")
		return nil, "", err
	}
	defer wsConn.Close()

	spinner.UpdateText("Client connected — negotiating WebRTC...")

	pc, err := rtc.NewPeerConnection()
	if err != nil {
		spinner.Fail("Failed to create PeerConnection")
		return nil, "", err
	}
	dc, err := rtc.CreateDataChannel(pc)
	if err != nil {
		pc.Close()
		spinner.Fail("Failed to create DataChannel")
		return nil, "", err
	}
	channel, err := negotiate(ctx, pc, dc, wsConn, spinner, true)
	if err != nil {
		return nil, "", err
	}
	return channel, pin, nil
}

// EstablishAsClient dials wsURL (expected to carry the host's PIN as a
// query parameter), negotiates WebRTC, and returns a ready Transport.
func EstablishAsClient(ctx context.Context, wsURL string) (transport.Transport, error) {
	spinner, _ := pterm.DefaultSpinner.
		WithRemoveWhenDone(true).
		Start("Connecting to signaling server...")

	wsConn, err := connect(ctx, wsURL)
	if err != nil {
		spinner.Fail("Failed to connect to WebSocket server")
		return nil, err
	}
	defer wsConn.Close()

	spinner.UpdateText("WebSocket connected — negotiating WebRTC...")

	pc, err := rtc.NewPeerConnection()
	if err != nil {
		spinner.Fail("Failed to create PeerConnection")
		return nil, err
	}
	return negotiate(ctx, pc, nil, wsConn, spinner, false)
}

// negotiate runs the shared SDP/ICE exchange and blocks until the
// DataChannel opens, then wraps the pair as a transport.Transport.
// The host side creates and sends the initial offer; the client answers
// and picks up the DataChannel the host created via OnDataChannel.
func negotiate(ctx context.Context, pc *webrtc.PeerConnection, dc *webrtc.DataChannel, wsConn *websocket.Conn, spinner *pterm.SpinnerPrinter, isHost bool) (transport.Transport, error) {
	s := &sender{pc: pc, conn: wsConn}
	r := &receiver{pc: pc, conn: wsConn, sender: s}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			data, _ := json.Marshal(c.ToJSON())
			_ = s.sendCandidate(string(data)) // best-effort
		}
	})

	dcCh := make(chan *webrtc.DataChannel, 1)
	if dc != nil {
		dcCh <- dc
	} else {
		pc.OnDataChannel(func(remote *webrtc.DataChannel) {
			dcCh <- remote
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- r.watch() }()

	if isHost {
		if err := s.sendOffer(); err != nil {
			pc.Close()
			spinner.Fail("Failed to send Offer")
			return nil, err
		}
	}

	var resolved *webrtc.DataChannel
	select {
	case resolved = <-dcCh:
	case err := <-errCh:
		pc.Close()
		spinner.Fail("Failed to read signaling messages")
		return nil, err
	case <-ctx.Done():
		pc.Close()
		spinner.Fail("Context cancelled while waiting for signaling")
		return nil, ctx.Err()
	}

	wrapped := transport.NewWebRTC(ctx, pc, resolved)

	select {
	case <-wrapped.Ready():
		spinner.Success("WebRTC DataChannel established")
		util.LogInfo("Closing websocket connection")
		return wrapped, nil

	case err := <-errCh:
		pc.Close()
		spinner.Fail("Failed to read signaling messages")
		return nil, err

	case <-ctx.Done():
		pc.Close()
		spinner.Fail("Context cancelled while waiting for signaling")
		return nil, ctx.Err()
	}
}
