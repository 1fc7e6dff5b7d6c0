package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// shutdown drains the session registry, tears down the protocol server, and
// stops the HTTP server. Every step is best-effort: a failing step is logged
// and the sequence continues. The watchdog bounds the whole sequence
// regardless of how many stuck connections exist.
func (g *Gateway) shutdown() error {
	log.Printf("shutting down gateway")

	watchdog := time.AfterFunc(g.watchdogTimeout, func() {
		log.Printf("shutdown watchdog expired after %s, forcing exit", g.watchdogTimeout)
		g.exit(1)
	})
	defer watchdog.Stop()

	// Snapshot-and-clear before issuing closes so iteration is unaffected
	// by disconnect hooks removing entries concurrently.
	transports := g.registry.Drain()
	var wg sync.WaitGroup
	for _, transport := range transports {
		wg.Add(1)
		go func(t *SSETransport) {
			defer wg.Done()
			if err := t.Close(); err != nil {
				log.Printf("close session %s: %v", t.SessionID(), err)
			}
		}(transport)
	}
	wg.Wait()
	log.Printf("closed %d session(s)", len(transports))

	if g.serverCloser != nil {
		if err := g.serverCloser.Close(); err != nil {
			log.Printf("close protocol server: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown HTTP server: %v", err)
	}

	return nil
}
