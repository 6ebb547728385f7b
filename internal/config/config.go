// Package config holds the CLI configuration types gathered by cmd/peerctl.
package config

import "time"

// Role represents the user's chosen role (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// TransportKind selects which reference Transport implementation a Peer
// rides on (spec §4.5, §2 domain stack).
type TransportKind string

const (
	TransportWebSocket TransportKind = "websocket"
	TransportWebRTC    TransportKind = "webrtc"
)

// Config stores all parameters gathered from CLI flags or interactive
// prompts before a Peer is constructed.
type Config struct {
	Role      Role
	Transport TransportKind

	PeerID string // empty means "generate one"

	ListenAddr string // host: address to listen on
	DialURL    string // client: WebSocket URL to dial, or signaling URL for webrtc

	PingInterval time.Duration
	PingTimeout  time.Duration
	IdleTimeout  time.Duration // 0 disables the idle watchdog
}

// DefaultPingInterval and DefaultPingTimeout mirror the Transport package's
// own defaults so the CLI's flag defaults behave the same as calling the
// library with no explicit tuning.
const (
	DefaultPingInterval = 20 * time.Second
	DefaultPingTimeout  = 10 * time.Second
)
