package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	gatewaycmd "github.com/louisbranch/mcpbridge/internal/cmd/gateway"
	"github.com/louisbranch/mcpbridge/internal/platform/config"
)

// main starts the SSE gateway for the wrapped MCP server.
func main() {
	cfg, err := gatewaycmd.ParseConfig(flag.CommandLine, os.Args[1:], config.Environ())
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[mcpbridge] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gatewaycmd.Run(ctx, cfg); err != nil {
		config.Exitf("serve gateway: %v", err)
	}
}
