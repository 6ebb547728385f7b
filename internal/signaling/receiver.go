package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

// receiver owns the WebSocket read side during the SDP/ICE handshake.
type receiver struct {
	pc     *webrtc.PeerConnection
	conn   *websocket.Conn
	sender *sender
}

// watch reads signaling messages until the connection errors or closes,
// applying each to pc. An inbound offer triggers an answer in reply.
func (r *receiver) watch() error {
	for {
		var msg message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("讀取 WS 訊息失敗: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := r.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
			}); err != nil {
				return err
			}
			if err := r.sender.sendAnswer(); err != nil {
				return err
			}

		case msgTypeAnswer:
			if err := r.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
			}); err != nil {
				return err
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("解析 ICE candidate 失敗: %w", err)
			}
			if err := r.pc.AddICECandidate(init); err != nil {
				return err
			}
		}
	}
}
