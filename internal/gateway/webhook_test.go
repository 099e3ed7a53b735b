package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/shoptalk/internal/payments"
)

type fakeEngine struct {
	mu       sync.Mutex
	Turns    []InboundMessage
	Payments []payments.Result
	Reply    string
	Err      error
}

func (f *fakeEngine) HandleTurn(ctx context.Context, msg InboundMessage) (OutboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Turns = append(f.Turns, msg)
	if f.Err != nil {
		return OutboundMessage{}, f.Err
	}
	return OutboundMessage{ConversationID: msg.ConversationID, Text: f.Reply}, nil
}

func (f *fakeEngine) HandlePaymentResult(ctx context.Context, res payments.Result) (OutboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Payments = append(f.Payments, res)
	return OutboundMessage{ConversationID: "conv-1", Text: "payment noted"}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	Sent []OutboundMessage
}

func (f *fakeSender) Send(ctx context.Context, msg OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, msg)
	return nil
}

func newServer(engine *fakeEngine, sender Sender) *httptest.Server {
	r := chi.NewRouter()
	NewWebhook(engine, engine, sender, nil).Routes(r)
	return httptest.NewServer(r)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshalling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("posting: %v", err)
	}
	return resp
}

func TestMessageWebhook(t *testing.T) {
	engine := &fakeEngine{Reply: "hello there"}
	sender := &fakeSender{}
	srv := newServer(engine, sender)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/webhook/message", map[string]string{
		"message_id":      "m1",
		"conversation_id": "conv-1",
		"tenant_id":       "acme",
		"customer_id":     "cust-1",
		"text":            "hi",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var out OutboundMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Text != "hello there" {
		t.Errorf("reply not returned: %+v", out)
	}
	if len(engine.Turns) != 1 || engine.Turns[0].MessageID != "m1" {
		t.Errorf("turn not delivered: %+v", engine.Turns)
	}
	if len(sender.Sent) != 1 {
		t.Errorf("reply not pushed through sender: %d", len(sender.Sent))
	}
}

func TestMessageWebhookValidation(t *testing.T) {
	engine := &fakeEngine{Reply: "x"}
	srv := newServer(engine, nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/webhook/message", map[string]string{"text": "hi"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing ids should 400, got %d", resp.StatusCode)
	}
	if len(engine.Turns) != 0 {
		t.Error("invalid message reached the engine")
	}
}

func TestMessageWebhookAssignsMessageID(t *testing.T) {
	engine := &fakeEngine{Reply: "x"}
	srv := newServer(engine, nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/webhook/message", map[string]string{
		"conversation_id": "conv-1",
		"tenant_id":       "acme",
		"text":            "hi",
	})
	defer resp.Body.Close()
	if len(engine.Turns) != 1 || engine.Turns[0].MessageID == "" {
		t.Errorf("message id not assigned: %+v", engine.Turns)
	}
}

func TestPaymentWebhook(t *testing.T) {
	engine := &fakeEngine{}
	sender := &fakeSender{}
	srv := newServer(engine, sender)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/webhook/payment", map[string]string{
		"reference": "pay-1",
		"status":    "paid",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(engine.Payments) != 1 || engine.Payments[0].Status != payments.StatusPaid {
		t.Errorf("payment result not delivered: %+v", engine.Payments)
	}
	if len(sender.Sent) != 1 || sender.Sent[0].Text != "payment noted" {
		t.Errorf("notification not sent: %+v", sender.Sent)
	}
}

func TestPaymentWebhookUnknownStatusIsFailed(t *testing.T) {
	engine := &fakeEngine{}
	srv := newServer(engine, nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/webhook/payment", map[string]string{
		"reference": "pay-1",
		"status":    "weird",
	})
	defer resp.Body.Close()
	if len(engine.Payments) != 1 || engine.Payments[0].Status != payments.StatusFailed {
		t.Errorf("unknown status should coerce to failed: %+v", engine.Payments)
	}
}
