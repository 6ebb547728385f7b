// peerctl — CLI entry point.
//
// peerctl is a thin demonstration harness around the Peer engine: it
// stands up a Peer over either reference Transport (WebSocket or WebRTC),
// registers a single "echo" RPC method, and reports traffic stats while it
// runs. Business logic beyond that belongs to the caller of the internal/peer
// package, not to this binary.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -transport, -id, -listen, -dial, -ping-interval,
// -ping-timeout, -idle-timeout, -debug).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"

	"github.com/1ureka/wirepeer/internal/config"
	"github.com/1ureka/wirepeer/internal/peer"
	"github.com/1ureka/wirepeer/internal/signaling"
	"github.com/1ureka/wirepeer/internal/transport"
	"github.com/1ureka/wirepeer/internal/util"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	roleFlag := flag.String("role", "", "Role: host or client")
	transportFlag := flag.String("transport", "websocket", "Transport: websocket or webrtc")
	idFlag := flag.String("id", "", "Peer id (default: random UUID)")
	listenFlag := flag.String("listen", ":0", "Address to listen on (host, websocket transport only)")
	dialFlag := flag.String("dial", "", "URL to dial (client): ws(s):// for websocket, ws(s):// signaling URL with ?pin= for webrtc")
	pingInterval := flag.Duration("ping-interval", config.DefaultPingInterval, "Outbound ping interval (websocket transport only)")
	pingTimeout := flag.Duration("ping-timeout", config.DefaultPingTimeout, "Ping reply timeout before the connection is dropped (websocket transport only)")
	idleTimeout := flag.Duration("idle-timeout", 0, "Close the Peer after this long with no inbound traffic (0 disables)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.DefaultBigText.WithLetters(pterm.NewLettersFromStringWithStyle("peerctl", pterm.NewStyle(pterm.FgCyan))).Render()
	pterm.Info.Println(fmt.Sprintf("wirepeer v%s", version))
	pterm.Println()

	cfg := config.Config{
		PeerID:       strings.TrimSpace(*idFlag),
		ListenAddr:   *listenFlag,
		DialURL:      strings.TrimSpace(*dialFlag),
		PingInterval: *pingInterval,
		PingTimeout:  *pingTimeout,
		IdleTimeout:  *idleTimeout,
	}

	switch *transportFlag {
	case string(config.TransportWebSocket):
		cfg.Transport = config.TransportWebSocket
	case string(config.TransportWebRTC):
		cfg.Transport = config.TransportWebRTC
	default:
		util.LogError("invalid -transport: must be 'websocket' or 'webrtc'")
		os.Exit(1)
	}

	switch *roleFlag {
	case "":
		runInteractive(ctx, cfg)
	case "host":
		cfg.Role = config.RoleHost
		runHost(ctx, cfg)
	case "client":
		cfg.Role = config.RoleClient
		if cfg.DialURL == "" {
			util.LogError("missing -dial for client role")
			os.Exit(1)
		}
		runClient(ctx, cfg)
	default:
		util.LogError("invalid -role: must be 'host' or 'client'")
		os.Exit(1)
	}

	util.LogInfo("peerctl exited")
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

func runInteractive(ctx context.Context, cfg config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host — wait for a peer to connect", "Client — connect to a host"}).
		WithDefaultText("Select your role").
		Show()

	kind, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"websocket", "webrtc"}).
		WithDefaultText("Select the Transport").
		Show()
	cfg.Transport = config.TransportKind(kind)

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		cfg.Role = config.RoleHost
		if cfg.Transport == config.TransportWebSocket {
			cfg.ListenAddr = askListenAddr()
		}
		runHost(ctx, cfg)
	} else {
		cfg.Role = config.RoleClient
		cfg.DialURL = askDialURL(cfg.Transport)
		runClient(ctx, cfg)
	}
}

func runHost(ctx context.Context, cfg config.Config) {
	id := peerID(cfg.PeerID)
	util.StartStatsReporter(ctx)

	var tr transport.Transport
	switch cfg.Transport {
	case config.TransportWebRTC:
		wtr, pin, err := signaling.EstablishAsHost(ctx)
		if err != nil {
			util.LogError("failed to establish WebRTC transport: %v", err)
			os.Exit(1)
		}
		tr = wtr
		printHostBanner(id, fmt.Sprintf("PIN %s", pin))
	default:
		wtr, err := listenWebSocket(ctx, cfg)
		if err != nil {
			util.LogError("failed to establish WebSocket transport: %v", err)
			os.Exit(1)
		}
		tr = wtr
		printHostBanner(id, fmt.Sprintf("listening on %s", cfg.ListenAddr))
	}

	runPeer(ctx, id, tr, cfg)
}

func runClient(ctx context.Context, cfg config.Config) {
	id := peerID(cfg.PeerID)
	util.StartStatsReporter(ctx)

	var tr transport.Transport
	switch cfg.Transport {
	case config.TransportWebRTC:
		wtr, err := signaling.EstablishAsClient(ctx, cfg.DialURL)
		if err != nil {
			util.LogError("failed to establish WebRTC transport: %v", err)
			os.Exit(1)
		}
		tr = wtr
	default:
		wtr, err := dialWebSocket(ctx, cfg)
		if err != nil {
			util.LogError("failed to establish WebSocket transport: %v", err)
			os.Exit(1)
		}
		tr = wtr
	}

	util.LogSuccess("peer %s connected", id)
	runPeer(ctx, id, tr, cfg)
}

// runPeer wires a Peer over tr, registers a demonstration echo method, and
// blocks until the Peer closes or the context is cancelled.
func runPeer(ctx context.Context, id string, tr transport.Transport, cfg config.Config) {
	var opts []peer.Option
	if cfg.IdleTimeout > 0 {
		opts = append(opts, peer.WithIdleTimeout(cfg.IdleTimeout))
	}
	p := peer.New(id, tr, opts...)

	closed := make(chan struct{})
	p.OnClose(func(code int, reason string) {
		util.LogWarning("peer %s closed: %d %s", p.ID(), code, reason)
		close(closed)
	})
	p.OnRequest(func(req peer.Request, reply *peer.Responder) {
		if req.Method != "echo" {
			_ = reply.RejectCode(404, fmt.Errorf("unknown method %q", req.Method))
			return
		}
		_ = reply.Accept(req.Data)
	})
	p.OnNotification(func(n peer.Notification) {
		util.LogInfo("peer %s: notification %q", p.ID(), n.Method)
	})

	select {
	case <-ctx.Done():
		p.CloseDefault()
	case <-closed:
	}
}

// ---------------------------------------------------------------------------
// WebSocket transport bootstrap
// ---------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func listenWebSocket(ctx context.Context, cfg config.Config) (*transport.WebSocket, error) {
	connCh := make(chan *websocket.Conn, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case connCh <- conn:
		default:
			conn.Close()
		}
	})

	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Waiting for a peer to connect...")
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() { _ = server.ListenAndServe() }()
	defer server.Close()

	select {
	case conn := <-connCh:
		spinner.Success("Peer connected")
		return transport.NewWebSocketWithLiveness(conn, cfg.PingInterval, cfg.PingTimeout), nil
	case <-ctx.Done():
		spinner.Fail("Cancelled")
		return nil, ctx.Err()
	}
}

func dialWebSocket(ctx context.Context, cfg config.Config) (*transport.WebSocket, error) {
	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Connecting to host...")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.DialURL, nil)
	if err != nil {
		spinner.Fail("Failed to connect")
		return nil, err
	}
	spinner.Success("Connected")
	return transport.NewWebSocketWithLiveness(conn, cfg.PingInterval, cfg.PingTimeout), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func peerID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return uuid.NewString()
}

func printHostBanner(id, detail string) {
	pterm.DefaultBox.
		WithTitle("Host ready").
		WithTitleTopCenter().
		Println(fmt.Sprintf("peer id: %s\n%s", id, detail))
}

func askListenAddr() string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Address to listen on (blank for a random port)").
		Show()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ":0"
	}
	return raw
}

func askDialURL(kind config.TransportKind) string {
	prompt := "WebSocket URL (e.g. ws://host:port/rpc)"
	if kind == config.TransportWebRTC {
		prompt = "Signaling WebSocket URL (e.g. ws://host:port/ws?pin=1234)"
	}
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).Show()
		u, err := url.Parse(strings.TrimSpace(raw))
		if err == nil && u.Host != "" {
			pterm.Println()
			return raw
		}
		pterm.Println()
		util.LogWarning("invalid URL, try again")
	}
}
