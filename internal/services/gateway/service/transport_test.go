package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

func decodeTestMessage(t *testing.T, raw string) jsonrpc.Message {
	t.Helper()
	msg, err := jsonrpc.DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func TestNewSSETransportGeneratesUniqueIDs(t *testing.T) {
	first := newTestTransport(t)
	second := newTestTransport(t)

	if first.SessionID() == "" || second.SessionID() == "" {
		t.Fatal("expected non-empty session ids")
	}
	if first.SessionID() == second.SessionID() {
		t.Fatalf("expected unique session ids, both were %q", first.SessionID())
	}
}

func TestNewSSETransportRequiresFlusher(t *testing.T) {
	// A bare ResponseWriter without Flush cannot carry an event stream.
	if _, err := NewSSETransport(DefaultMessagesPath, nonFlushingWriter{httptest.NewRecorder()}); err == nil {
		t.Fatal("expected error for non-flushing writer")
	}
}

// nonFlushingWriter narrows the recorder to the plain ResponseWriter
// interface so the Flush method is not part of its method set.
type nonFlushingWriter struct{ http.ResponseWriter }

func TestGenerateSessionIDFallback(t *testing.T) {
	id := generateSessionID(func([]byte) (int, error) {
		return 0, fmt.Errorf("entropy exhausted")
	})
	if id == "" {
		t.Fatal("expected non-empty fallback id")
	}
	if !strings.HasPrefix(id, "session_") {
		t.Fatalf("expected session_ prefix, got %q", id)
	}
}

func TestStartWritesEndpointEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	transport, err := NewSSETransport("/mcp-messages", rec)
	if err != nil {
		t.Fatalf("create transport: %v", err)
	}

	transport.start()

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
	want := fmt.Sprintf("event: endpoint\ndata: /mcp-messages?sessionId=%s\n\n", transport.SessionID())
	if rec.Body.String() != want {
		t.Fatalf("expected endpoint event %q, got %q", want, rec.Body.String())
	}
	if !transport.Started() {
		t.Fatal("expected transport to report started")
	}

	// A second start must not write a second preamble.
	transport.start()
	if rec.Body.String() != want {
		t.Fatal("second start must be a no-op")
	}
}

func TestWriteBeforeStart(t *testing.T) {
	transport := newTestTransport(t)
	msg := decodeTestMessage(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)

	if err := transport.Write(context.Background(), msg); err == nil {
		t.Fatal("expected error writing before the stream started")
	}
}

func TestWriteStreamsMessageEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	transport, err := NewSSETransport(DefaultMessagesPath, rec)
	if err != nil {
		t.Fatalf("create transport: %v", err)
	}
	transport.start()

	msg := decodeTestMessage(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if err := transport.Write(context.Background(), msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: message\ndata: ") {
		t.Fatalf("expected a message event, got %q", body)
	}
	if !strings.Contains(body, `"method":"ping"`) {
		t.Fatalf("expected the encoded message in the stream, got %q", body)
	}
}

func TestWriteAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	transport, err := NewSSETransport(DefaultMessagesPath, rec)
	if err != nil {
		t.Fatalf("create transport: %v", err)
	}
	transport.start()
	if err := transport.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	msg := decodeTestMessage(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if err := transport.Write(context.Background(), msg); err == nil {
		t.Fatal("expected error writing to a closed transport")
	}
}

func TestReadDeliversPostedMessage(t *testing.T) {
	transport := newTestTransport(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp-messages?sessionId="+transport.SessionID(),
		strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`))
	if err := transport.HandleMessage(rec, req); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := transport.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	req2, ok := msg.(*jsonrpc.Request)
	if !ok {
		t.Fatalf("expected *jsonrpc.Request, got %T", msg)
	}
	if req2.Method != "tools/list" {
		t.Fatalf("expected method tools/list, got %q", req2.Method)
	}
}

func TestHandleMessageMalformedBody(t *testing.T) {
	transport := newTestTransport(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp-messages", strings.NewReader("not json"))
	if err := transport.HandleMessage(rec, req); err != nil {
		t.Fatalf("malformed input is a client error, not a transport error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleMessageAfterClose(t *testing.T) {
	transport := newTestTransport(t)
	if err := transport.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp-messages", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	err := transport.HandleMessage(rec, req)
	if err == nil {
		t.Fatal("expected error for closed transport")
	}
	if rec.Body.Len() != 0 {
		t.Fatal("closed transport must not write a response")
	}
}

func TestCloseIdempotent(t *testing.T) {
	transport := newTestTransport(t)

	for range 3 {
		if err := transport.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	select {
	case <-transport.Done():
	default:
		t.Fatal("expected done channel to be closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := transport.Read(ctx); err == nil {
		t.Fatal("expected read error after close")
	}
}
