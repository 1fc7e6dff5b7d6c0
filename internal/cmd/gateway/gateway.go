// Package gateway parses gateway command configuration and runs the SSE
// bridge around the wrapped MCP server.
package gateway

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/mcpbridge/internal/platform/config"
	"github.com/louisbranch/mcpbridge/internal/platform/otel"
	"github.com/louisbranch/mcpbridge/internal/services/gateway/service"
	"github.com/louisbranch/mcpbridge/internal/upstream"
)

// defaultPort is the HTTP listen port when neither flag nor environment
// provides one.
const defaultPort = 3002

// Config holds gateway command configuration. Environment values take
// precedence over flag values: hosted deployments configure through the
// environment and must not be overridden by stray arguments.
type Config struct {
	AccessToken  string `env:"MCPBRIDGE_ACCESS_TOKEN"`
	ProjectRef   string `env:"MCPBRIDGE_PROJECT_REF"`
	ReadOnly     bool   `env:"MCPBRIDGE_READ_ONLY"`
	APIBaseURL   string `env:"MCPBRIDGE_API_URL"`
	Port         int    `env:"MCPBRIDGE_PORT"`
	SSEPath      string `env:"MCPBRIDGE_SSE_PATH"`
	MessagesPath string `env:"MCPBRIDGE_MESSAGES_PATH"`
}

// ParseConfig parses flags and then overlays the supplied environment onto
// the result. A variable absent from environ leaves the flag value in
// place, so an explicit --read-only=false survives unless the environment
// states otherwise.
func ParseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	cfg := Config{
		Port:         defaultPort,
		SSEPath:      service.DefaultSSEPath,
		MessagesPath: service.DefaultMessagesPath,
	}

	fs.StringVar(&cfg.AccessToken, "access-token", cfg.AccessToken, "management API access token")
	fs.StringVar(&cfg.ProjectRef, "project-ref", cfg.ProjectRef, "project to scope operations to")
	fs.BoolVar(&cfg.ReadOnly, "read-only", cfg.ReadOnly, "restrict the server to read-only operations")
	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "management API base URL")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.SSEPath, "sse-path", cfg.SSEPath, "SSE stream path")
	fs.StringVar(&cfg.MessagesPath, "messages-path", cfg.MessagesPath, "message submission path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := config.ParseEnvironment(&cfg, environ); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the SSE gateway and blocks until shutdown completes.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "gateway")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	srv, err := upstream.New(upstream.Config{
		AccessToken: cfg.AccessToken,
		ProjectRef:  cfg.ProjectRef,
		ReadOnly:    cfg.ReadOnly,
		APIBaseURL:  cfg.APIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("create protocol server: %w", err)
	}

	go srv.MonitorHealth(ctx)

	g := service.New(service.Config{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		SSEPath:      cfg.SSEPath,
		MessagesPath: cfg.MessagesPath,
		Server:       srv.MCP(),
		ServerCloser: srv,
	})
	return g.Start(ctx)
}
