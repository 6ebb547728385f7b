// Package signaling performs the one-shot WebSocket-based SDP/ICE exchange
// needed to stand up the WebRTC variant of the Peer Transport (spec §4.5's
// "reference Transport" section extended to a second implementation, see
// SPEC_FULL.md §3). It has nothing to do with the Peer's own RPC message
// kinds — signaling traffic never reaches the Peer engine.
package signaling

// messageType identifies the kind of signaling message.
type messageType string

const (
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket during signaling.
type message struct {
	Type      messageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
