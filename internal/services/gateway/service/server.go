package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var listenTCP = net.Listen
var osExit = os.Exit

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":3002"

	// DefaultSSEPath is where clients open the event stream.
	DefaultSSEPath = "/sse"

	// DefaultMessagesPath is where clients POST protocol messages.
	DefaultMessagesPath = "/mcp-messages"

	// shutdownWatchdogTimeout bounds the whole shutdown sequence; the
	// process is forced down with a failure status when it elapses.
	shutdownWatchdogTimeout = 10 * time.Second

	// httpShutdownTimeout bounds the HTTP server drain. It is shorter than
	// the watchdog so a stuck drain still exits through the graceful path.
	httpShutdownTimeout = 8 * time.Second
)

// Config configures a Gateway. Zero values fall back to the defaults above.
type Config struct {
	Addr         string
	SSEPath      string
	MessagesPath string

	// Server is the wrapped protocol server. A nil server degrades every
	// endpoint to 503 instead of failing at construction, which is the
	// behavior hosted deployments rely on when no credential is configured.
	Server *mcp.Server

	// ServerCloser, when set, is invoked during shutdown for global
	// protocol-server teardown.
	ServerCloser io.Closer
}

// Gateway maps long-lived SSE connections to the short-lived POST requests
// that feed them and owns their shared lifecycle.
type Gateway struct {
	addr         string
	ssePath      string
	messagesPath string
	server       *mcp.Server
	serverCloser io.Closer
	registry     *Registry
	httpServer   *http.Server

	watchdogTimeout time.Duration
	exit            func(int)
}

// New creates a Gateway with its endpoints registered.
func New(cfg Config) *Gateway {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.SSEPath == "" {
		cfg.SSEPath = DefaultSSEPath
	}
	if cfg.MessagesPath == "" {
		cfg.MessagesPath = DefaultMessagesPath
	}

	g := &Gateway{
		addr:            cfg.Addr,
		ssePath:         cfg.SSEPath,
		messagesPath:    cfg.MessagesPath,
		server:          cfg.Server,
		serverCloser:    cfg.ServerCloser,
		registry:        NewRegistry(),
		watchdogTimeout: shutdownWatchdogTimeout,
		exit:            osExit,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(g.ssePath, g.handleSSE)
	mux.HandleFunc(g.messagesPath, g.handleMessages)
	mux.HandleFunc("/healthz", g.handleHealth)

	g.httpServer = &http.Server{
		Addr:    g.addr,
		Handler: mux,
	}

	return g
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Start binds the listener and serves until ctx is cancelled or the server
// fails. On cancellation it runs the shutdown sequence and returns nil when
// the sequence completes within its bounds.
func (g *Gateway) Start(ctx context.Context) error {
	listener, err := listenTCP("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", g.addr, err)
	}

	log.Printf("gateway listening on %s (sse=%s messages=%s)", g.addr, g.ssePath, g.messagesPath)

	errChan := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return g.shutdown()
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// handleHealth reports liveness, how many sessions are open, and whether
// the protocol server is configured.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"sessions":   g.registry.Len(),
		"configured": g.server != nil,
	})
}
