// Package webrtc provides helpers for creating PeerConnections and DataChannels.
package webrtc

import (
	"github.com/pion/webrtc/v4"
)

// STUN servers for ICE candidate gathering. No TURN — the tool is designed
// for direct P2P connectivity with zero infrastructure cost.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// NewPeerConnection creates a PeerConnection configured with Google STUN servers.
func NewPeerConnection() (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
	return webrtc.NewPeerConnection(config)
}

// CreateDataChannel creates a single ordered DataChannel on the given
// PeerConnection, labelled "rpc". Ordered delivery is required here, unlike
// a raw packet tunnel: the Peer engine's response-before-its-request
// ordering guarantee (spec §5) depends on the Transport preserving
// send-order on the wire.
func CreateDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	return pc.CreateDataChannel("rpc", &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
}
