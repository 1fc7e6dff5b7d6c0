package service

import (
	"log"
	"net/http"
	"strings"
)

// committedWriter records whether a response has been started so error
// paths never write a second response for the same request.
type committedWriter struct {
	http.ResponseWriter
	committed bool
}

func (w *committedWriter) WriteHeader(code int) {
	w.committed = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *committedWriter) Write(b []byte) (int, error) {
	w.committed = true
	return w.ResponseWriter.Write(b)
}

// handleMessages handles POST requests carrying one protocol message and
// forwards it to the session named by the sessionId query parameter.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if g.server == nil {
		http.Error(w, "Server not initialized", http.StatusServiceUnavailable)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		http.Error(w, "Missing sessionId query parameter", http.StatusBadRequest)
		return
	}

	transport, ok := g.registry.Get(sessionID)
	if !ok {
		// Never-existed and already-closed sessions are indistinguishable
		// here; no separate expired state is tracked.
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	cw := &committedWriter{ResponseWriter: w}
	if err := transport.HandleMessage(cw, r); err != nil {
		log.Printf("handle message for session %s: %v", sessionID, err)
		if !cw.committed {
			http.Error(cw, "Failed to handle message", http.StatusInternalServerError)
		}
	}
}
