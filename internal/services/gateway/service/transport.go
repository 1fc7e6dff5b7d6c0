package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// inboundBufferSize is the buffer for messages posted against a session
// before the protocol server reads them.
const inboundBufferSize = 10

var sessionCounter atomic.Uint64

// SSETransport binds one client's SSE stream to its paired POST message
// channel. It implements mcp.Transport and mcp.Connection so the protocol
// server can be connected directly to it; the Gateway owns its lifecycle
// through the session registry.
type SSETransport struct {
	sessionID string
	endpoint  string // path clients POST messages to, including the sessionId query

	w       http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex
	started bool // guarded by writeMu

	inbound   chan jsonrpc.Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewSSETransport creates a transport for one streaming response. It fails
// when the writer cannot flush incrementally, which SSE requires.
func NewSSETransport(messagesPath string, w http.ResponseWriter) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	id := generateSessionID(rand.Read)
	return &SSETransport{
		sessionID: id,
		endpoint:  fmt.Sprintf("%s?sessionId=%s", messagesPath, id),
		w:         w,
		flusher:   flusher,
		inbound:   make(chan jsonrpc.Message, inboundBufferSize),
		done:      make(chan struct{}),
	}, nil
}

// SessionID returns the token correlating POSTed messages with this stream.
func (t *SSETransport) SessionID() string { return t.sessionID }

// Connect implements mcp.Transport by handing the protocol server this
// transport's connection half.
func (t *SSETransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return t, nil
}

// start commits the SSE response: headers, status, and the endpoint event
// announcing where the client must POST its messages.
func (t *SSETransport) start() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.started {
		return
	}
	t.started = true

	h := t.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	t.w.WriteHeader(http.StatusOK)
	fmt.Fprintf(t.w, "event: endpoint\ndata: %s\n\n", t.endpoint)
	t.flusher.Flush()
}

// Started reports whether any part of the response has been written. Error
// paths consult it before attempting to send a status code.
func (t *SSETransport) Started() bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.started
}

// Read implements mcp.Connection; it delivers messages posted against the
// session, in POST arrival order.
func (t *SSETransport) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg := <-t.inbound:
		return msg, nil
	case <-t.done:
		return nil, fmt.Errorf("session %s closed", t.sessionID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements mcp.Connection; it streams one protocol message to the
// client as an SSE message event.
func (t *SSETransport) Write(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case <-t.done:
		return fmt.Errorf("session %s closed", t.sessionID)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if !t.started {
		return fmt.Errorf("session %s stream not started", t.sessionID)
	}
	fmt.Fprintf(t.w, "event: message\ndata: %s\n\n", data)
	t.flusher.Flush()
	return nil
}

// HandleMessage accepts one posted protocol message for this session. It
// writes the HTTP response itself on success and on client errors; it
// returns an error without writing when the session can no longer accept
// messages, leaving the status decision to the caller.
func (t *SSETransport) HandleMessage(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return nil
	}
	defer r.Body.Close()

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, "Invalid JSON-RPC message", http.StatusBadRequest)
		return nil
	}

	// Checked ahead of the send: the inbound channel is buffered, so a
	// closed transport could otherwise still win the select below.
	select {
	case <-t.done:
		return fmt.Errorf("session %s closed", t.sessionID)
	default:
	}

	select {
	case t.inbound <- msg:
	case <-t.done:
		return fmt.Errorf("session %s closed", t.sessionID)
	case <-r.Context().Done():
		return r.Context().Err()
	}

	w.WriteHeader(http.StatusAccepted)
	return nil
}

// Close releases the stream. It is safe to call multiple times; the
// disconnect path and shutdown may race to close the same transport.
func (t *SSETransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// Done is closed once the transport has been closed.
func (t *SSETransport) Done() <-chan struct{} { return t.done }

// generateSessionID returns an opaque unique token from the supplied random
// source, falling back to timestamp plus counter when the source fails.
func generateSessionID(randomRead func([]byte) (int, error)) string {
	b := make([]byte, 8)
	if _, err := randomRead(b); err != nil {
		return fmt.Sprintf("session_%d_%d", time.Now().UnixNano(), sessionCounter.Add(1))
	}
	return fmt.Sprintf("session_%s_%d", hex.EncodeToString(b), sessionCounter.Add(1))
}
