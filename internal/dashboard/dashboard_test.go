package dashboard

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/shoptalk/internal/engine"
	"github.com/ziadkadry99/shoptalk/internal/gateway"
)

type fakeTurns struct {
	mu    sync.Mutex
	calls []gateway.InboundMessage
	reply string
}

func (f *fakeTurns) HandleTurn(ctx context.Context, msg gateway.InboundMessage) (gateway.OutboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	return gateway.OutboundMessage{
		ConversationID: msg.ConversationID,
		Text:           f.reply,
		InteractiveOptions: []gateway.InteractiveOption{
			{Label: "Browse products", Payload: "menu:browse"},
		},
	}, nil
}

func newTestServer(t *testing.T, turns gateway.TurnHandler) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub()
	d := New(turns, hub, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	r := chi.NewRouter()
	d.RegisterRoutes(r)
	return httptest.NewServer(r), hub
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestSandboxTurn(t *testing.T) {
	turns := &fakeTurns{reply: "Here is our menu."}
	srv, _ := newTestServer(t, turns)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/sandbox"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(sandboxRequest{TenantID: "acme", Text: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp sandboxResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "response" {
		t.Fatalf("type = %q, want response", resp.Type)
	}
	if resp.Text != "Here is our menu." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.ConversationID == "" || !strings.HasPrefix(resp.ConversationID, "sandbox-") {
		t.Errorf("conversation id = %q, want sandbox- prefix", resp.ConversationID)
	}
	if len(resp.Options) != 1 {
		t.Errorf("options = %v", resp.Options)
	}

	// A second message on the same conversation keeps the id stable.
	if err := conn.WriteJSON(sandboxRequest{
		TenantID:       "acme",
		ConversationID: resp.ConversationID,
		Text:           "1",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var second sandboxResponse
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read: %v", err)
	}
	if second.ConversationID != resp.ConversationID {
		t.Errorf("conversation id changed: %q -> %q", resp.ConversationID, second.ConversationID)
	}

	turns.mu.Lock()
	defer turns.mu.Unlock()
	if len(turns.calls) != 2 {
		t.Fatalf("turn calls = %d, want 2", len(turns.calls))
	}
	if turns.calls[0].MessageID == turns.calls[1].MessageID {
		t.Error("sandbox turns must get distinct message ids")
	}
	if turns.calls[0].CustomerID != "sandbox" {
		t.Errorf("customer id = %q", turns.calls[0].CustomerID)
	}
}

func TestSandboxValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTurns{reply: "ok"})
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/sandbox"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(sandboxRequest{Text: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp sandboxResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "error" {
		t.Fatalf("type = %q, want error", resp.Type)
	}
}

func TestEventFeed(t *testing.T) {
	srv, hub := newTestServer(t, &fakeTurns{reply: "ok"})
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/events"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscription happens after the upgrade; wait for it to land.
	deadline := time.Now().Add(2 * time.Second)
	for hub.subscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Emit(engine.TurnEvent{
		ConversationID: "conv-1",
		TenantID:       "acme",
		Path:           engine.PathDeterministic,
	})

	var ev engine.TurnEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.ConversationID != "conv-1" || ev.Path != engine.PathDeterministic {
		t.Errorf("event = %+v", ev)
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	hub := NewHub()
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody drains ch. Emit must drop once the buffer is full.
		for i := 0; i < clientBuffer*4; i++ {
			hub.Emit(engine.TurnEvent{ConversationID: "conv-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
	if got := len(ch); got != clientBuffer {
		t.Errorf("buffered events = %d, want %d", got, clientBuffer)
	}
}
