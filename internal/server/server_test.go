package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/db"
	"github.com/ziadkadry99/shoptalk/internal/llm"
	"github.com/ziadkadry99/shoptalk/internal/usage"
)

type fakeHandoffs struct {
	cleared []string
	err     error
}

func (f *fakeHandoffs) ClearHandoff(ctx context.Context, conversationID string) error {
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, conversationID)
	return nil
}

type fixture struct {
	srv      *httptest.Server
	convs    *conversation.Store
	usage    *usage.Store
	health   *llm.HealthTracker
	handoffs *fakeHandoffs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		convs:    conversation.NewStore(database),
		usage:    usage.NewStore(database),
		health:   llm.NewHealthTracker(20, 10, 0.5),
		handoffs: &fakeHandoffs{},
	}
	s := New(Config{Port: 0, AllowAll: true}, Deps{
		Conversations: f.convs,
		Usage:         f.usage,
		Health:        f.health,
		Handoffs:      f.handoffs,
	})
	f.srv = httptest.NewServer(s.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	if code := getJSON(t, f.srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestProvidersSnapshotAndReset(t *testing.T) {
	f := newFixture(t)
	ref := llm.ModelRef{Provider: "openai", Model: "gpt-4o-mini"}
	for i := 0; i < 5; i++ {
		f.health.Record(ref, i%2 == 0)
	}

	var body struct {
		Providers []llm.HealthStatus `json:"providers"`
	}
	if code := getJSON(t, f.srv.URL+"/ops/providers", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Providers) != 1 {
		t.Fatalf("providers = %+v", body.Providers)
	}
	if got := body.Providers[0].Successes + body.Providers[0].Failures; got != 5 {
		t.Errorf("samples = %d, want 5", got)
	}

	if code := postJSON(t, f.srv.URL+"/ops/providers/reset"); code != http.StatusOK {
		t.Fatalf("reset status = %d", code)
	}
	if got := len(f.health.Snapshot()); got != 0 {
		t.Errorf("snapshot after reset = %d entries", got)
	}
}

func TestUsageEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, tenantID := range []string{"acme", "acme", "globex"} {
		if err := f.usage.Write(ctx, usage.Record{
			TenantID:       tenantID,
			ConversationID: "conv-1",
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			InputTokens:    100,
			OutputTokens:   40,
			CostUSD:        0.01,
			Success:        true,
		}); err != nil {
			t.Fatalf("write usage: %v", err)
		}
	}

	var body struct {
		Summaries []usage.Summary `json:"summaries"`
	}
	if code := getJSON(t, f.srv.URL+"/ops/usage?tenant=acme", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Summaries) != 1 || body.Summaries[0].Calls != 2 {
		t.Errorf("summaries = %+v", body.Summaries)
	}

	if code := getJSON(t, f.srv.URL+"/ops/usage?hours=bogus", nil); code != http.StatusBadRequest {
		t.Errorf("bogus hours status = %d", code)
	}
}

func TestConversationEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.convs.GetOrCreate(ctx, "conv-1", "acme", "cust-1")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	conv.AwaitSlot("booking", "collect_date", "date")
	if err := f.convs.Save(ctx, conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	var view conversationView
	if code := getJSON(t, f.srv.URL+"/ops/conversations/conv-1", &view); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if view.State != conversation.StateAwaitingSlot || view.AwaitingSlot != "date" {
		t.Errorf("view = %+v", view)
	}

	if code := getJSON(t, f.srv.URL+"/ops/conversations/nope", nil); code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d", code)
	}
}

func TestClearHandoffEndpoint(t *testing.T) {
	f := newFixture(t)
	if code := postJSON(t, f.srv.URL+"/ops/conversations/conv-1/clear-handoff"); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(f.handoffs.cleared) != 1 || f.handoffs.cleared[0] != "conv-1" {
		t.Errorf("cleared = %v", f.handoffs.cleared)
	}

	f.handoffs.err = conversation.ErrNotFound
	if code := postJSON(t, f.srv.URL+"/ops/conversations/nope/clear-handoff"); code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d", code)
	}
}

func TestUsageSinceWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := usage.Record{
		TenantID:  "acme",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Success:   true,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	if err := f.usage.Write(ctx, old); err != nil {
		t.Fatalf("write: %v", err)
	}

	var body struct {
		Summaries []usage.Summary `json:"summaries"`
	}
	if code := getJSON(t, f.srv.URL+"/ops/usage?tenant=acme&hours=24", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Summaries) != 0 {
		t.Errorf("summaries = %+v, want old record excluded", body.Summaries)
	}
}
