// Package upstream constructs the wrapped MCP protocol server.
//
// The protocol semantics live entirely in the MCP SDK; this package only
// decides the server's identity, scope, and the authenticated client it
// uses against the hosted management API.
package upstream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "mcpbridge"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"

	// defaultAPIBaseURL is the hosted management API the protocol server
	// operates against when no override is configured.
	defaultAPIBaseURL = "https://api.supabase.com"

	// apiTimeout caps individual management API calls.
	apiTimeout = 30 * time.Second

	// healthCheckInterval is how often the background monitor probes the
	// management API.
	healthCheckInterval = 30 * time.Second
)

// Config carries the credentials and scope for the protocol server.
type Config struct {
	// AccessToken authenticates management API calls. Required.
	AccessToken string
	// ProjectRef scopes operations to a single project when set.
	ProjectRef string
	// ReadOnly restricts the server to non-mutating operations.
	ReadOnly bool
	// APIBaseURL overrides the management API endpoint.
	APIBaseURL string
}

// Server wraps the opaque MCP server together with its management API client.
type Server struct {
	mcp     *mcp.Server
	client  *http.Client
	baseURL string
}

// New builds the protocol server. A missing access token is a configuration
// error: no server can be created without it, and callers are expected to
// treat the failure as fatal at startup.
func New(cfg Config) (*Server, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("access token is required")
	}

	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		Instructions: instructions(cfg),
	})

	return &Server{
		mcp: server,
		client: &http.Client{
			Timeout: apiTimeout,
			Transport: &authTransport{
				token: token,
				base:  http.DefaultTransport,
			},
		},
		baseURL: baseURL,
	}, nil
}

// MCP returns the protocol server to bind transports against.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// APIBaseURL returns the management API endpoint in use.
func (s *Server) APIBaseURL() string { return s.baseURL }

// Close releases the protocol server's resources.
func (s *Server) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Ping probes the management API with the configured credential.
func (s *Server) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/projects", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("management API unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("management API returned %s", resp.Status)
	}
	return nil
}

// MonitorHealth periodically probes the management API until ctx is
// cancelled. Failures are logged but never terminate the gateway; the
// sessions themselves surface errors to their clients.
func (s *Server) MonitorHealth(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Ping(ctx); err != nil {
				log.Printf("management API health check failed: %v", err)
			}
		}
	}
}

// instructions describes the server's scope to connecting clients.
func instructions(cfg Config) string {
	var b strings.Builder
	b.WriteString("Bridges MCP clients to the hosted management API.")
	if ref := strings.TrimSpace(cfg.ProjectRef); ref != "" {
		fmt.Fprintf(&b, " Scoped to project %s.", ref)
	}
	if cfg.ReadOnly {
		b.WriteString(" Running in read-only mode.")
	}
	return b.String()
}

// authTransport injects the bearer token on every management API call.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}
