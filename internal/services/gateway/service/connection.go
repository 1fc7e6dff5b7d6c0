package service

import (
	"log"
	"net/http"
)

// handleSSE handles GET requests that open the event stream for one client
// connection. The handler blocks for the lifetime of the connection; each
// connection is independent and does not block others.
func (g *Gateway) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if g.server == nil {
		http.Error(w, "Server not initialized", http.StatusServiceUnavailable)
		return
	}

	transport, err := NewSSETransport(g.messagesPath, w)
	if err != nil {
		log.Printf("create transport for %s: %v", r.RemoteAddr, err)
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := transport.SessionID()
	if sessionID == "" {
		// A transport without an identifier cannot be addressed by the
		// message endpoint; treat it as a fatal setup error.
		log.Printf("transport for %s produced no session id", r.RemoteAddr)
		http.Error(w, "Failed to establish session", http.StatusInternalServerError)
		return
	}

	g.registry.Put(sessionID, transport)
	// The disconnect hook is registered before the bind so the entry is
	// reaped however the connection ends, including a failed bind. Closure
	// releases the stream; removal only drops the registry reference.
	defer func() {
		g.registry.Remove(sessionID)
		if err := transport.Close(); err != nil {
			log.Printf("close session %s: %v", sessionID, err)
		}
	}()

	session, err := g.server.Connect(r.Context(), transport, nil)
	if err != nil {
		log.Printf("connect session %s: %v", sessionID, err)
		if !transport.Started() {
			http.Error(w, "Failed to establish stream", http.StatusInternalServerError)
		}
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("close server session %s: %v", sessionID, err)
		}
	}()

	transport.start()
	log.Printf("session %s connected from %s", sessionID, r.RemoteAddr)

	select {
	case <-r.Context().Done():
	case <-transport.Done():
	}
	log.Printf("session %s disconnected", sessionID)
}
