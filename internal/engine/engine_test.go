package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/config"
	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/db"
	"github.com/ziadkadry99/shoptalk/internal/flows"
	"github.com/ziadkadry99/shoptalk/internal/gateway"
	"github.com/ziadkadry99/shoptalk/internal/grounding"
	"github.com/ziadkadry99/shoptalk/internal/intent"
	"github.com/ziadkadry99/shoptalk/internal/llm"
	"github.com/ziadkadry99/shoptalk/internal/payments"
	"github.com/ziadkadry99/shoptalk/internal/routing"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
	"github.com/ziadkadry99/shoptalk/internal/usage"
)

// mockExtractor returns scripted results and counts calls.
type mockExtractor struct {
	mu      sync.Mutex
	Results []*intent.Result
	Errs    []error
	Calls   int
}

func (m *mockExtractor) Extract(ctx context.Context, in intent.Input) (*intent.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.Calls
	m.Calls++
	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return nil, m.Errs[idx]
	}
	if idx < len(m.Results) {
		return m.Results[idx], nil
	}
	return &intent.Result{Intent: intent.IntentOther, Confidence: 0.3, Slots: map[string]string{}}, nil
}

// mockProvider serves scripted completions; errors are consumed per call.
type mockProvider struct {
	mu      sync.Mutex
	name    string
	Content string
	Errs    []error
	Calls   int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.Calls
	m.Calls++
	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return nil, m.Errs[idx]
	}
	return &llm.CompletionResponse{
		Content: m.Content, InputTokens: 100, OutputTokens: 40, Model: req.Model,
	}, nil
}

type fixture struct {
	engine    *Engine
	extractor *mockExtractor
	providers map[string]*mockProvider
	usage     *usage.Store
	store     *conversation.Store
	tenants   *tenant.Store
	health    *llm.HealthTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	catalogStore := catalog.NewStore(database)
	seed := []catalog.Item{
		{ID: "jacket", TenantID: "acme", Name: "Blue Jacket", Description: "Warm waterproof jacket", Price: 45.00, Currency: "USD", Kind: catalog.KindProduct, Active: true},
		{ID: "haircut", TenantID: "acme", Name: "Haircut", Price: 30.00, Currency: "USD", Kind: catalog.KindService, Active: true},
		{ID: "manicure", TenantID: "acme", Name: "Manicure", Price: 25.00, Currency: "USD", Kind: catalog.KindService, Active: true},
	}
	for _, item := range seed {
		if _, err := catalogStore.Put(ctx, item); err != nil {
			t.Fatalf("seeding catalog: %v", err)
		}
	}

	providers := map[string]*mockProvider{
		"openai":    {name: "openai", Content: "The Blue Jacket costs 45.00 USD."},
		"anthropic": {name: "anthropic", Content: "The Blue Jacket costs 45.00 USD."},
		"google":    {name: "google", Content: "The Blue Jacket costs 45.00 USD."},
	}
	registry := llm.Registry{}
	for name, p := range providers {
		registry[name] = p
	}

	health := llm.NewHealthTracker(20, 10, 0.5)
	client := llm.NewFailoverClient(registry, health, time.Second, nil)
	extractor := &mockExtractor{}

	cfg := config.DefaultConfig()
	tenantStore := tenant.NewStore(database)
	if _, err := tenantStore.Put(ctx, tenant.Defaults("acme")); err != nil {
		t.Fatalf("seeding tenant: %v", err)
	}

	groundingEngine := grounding.NewEngine([]grounding.Source{
		grounding.NewCatalogSource(catalogStore),
	}, 2*time.Second, nil)

	usageStore := usage.NewStore(database)
	convStore := conversation.NewStore(database)

	e := New(Deps{
		Store:     convStore,
		Ledger:    conversation.NewLedger(database),
		Tenants:   tenant.NewCache(tenantStore),
		Extractor: extractor,
		Grounding: groundingEngine,
		Scorer:    routing.NewScorer(cfg.Routing.ComplexKeywords, cfg.Routing.LargeContextTokens),
		Router:    routing.NewRouter(cfg.Routing),
		Client:    client,
		Catalog:   catalogStore,
		Orders:    flows.NewOrderStore(database),
		Bookings:  flows.NewBookingStore(database),
		Payments:  payments.NewStubGateway(),
		Usage:     usageStore,
	})

	return &fixture{
		engine:    e,
		extractor: extractor,
		providers: providers,
		usage:     usageStore,
		store:     convStore,
		tenants:   tenantStore,
		health:    health,
	}
}

func inbound(msgID, text string) gateway.InboundMessage {
	return gateway.InboundMessage{
		MessageID:      msgID,
		ConversationID: "conv-1",
		TenantID:       "acme",
		CustomerID:     "cust-1",
		Text:           text,
		ReceivedAt:     time.Now().UTC(),
	}
}

// Scenario A: a numeric menu reply resolves deterministically with zero
// extractor and zero model calls.
func TestMenuReplyNeverCallsExtractor(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, err := fx.store.GetOrCreate(ctx, "conv-1", "acme", "cust-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	conv.PresentMenu([]conversation.MenuOption{
		{Label: "Haircut", Payload: "item:haircut", Flow: flows.FlowBooking},
		{Label: "Manicure", Payload: "item:manicure", Flow: flows.FlowBooking},
	})
	if err := fx.store.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := fx.engine.HandleTurn(ctx, inbound("m1", "1"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if fx.extractor.Calls != 0 {
		t.Errorf("extractor called %d times on a menu reply", fx.extractor.Calls)
	}
	for name, p := range fx.providers {
		if p.Calls != 0 {
			t.Errorf("provider %s called %d times on a menu reply", name, p.Calls)
		}
	}
	if !strings.Contains(out.Text, "date") {
		t.Errorf("expected the booking date prompt, got %q", out.Text)
	}

	saved, _ := fx.store.Get(ctx, "conv-1")
	if saved.Flow != flows.FlowBooking || saved.AwaitingSlot != "date" {
		t.Errorf("booking flow not entered: %+v", saved)
	}
}

// Scenario B: a grounded price question answers with the price and a
// catalog attribution.
func TestGroundedPriceQuestion(t *testing.T) {
	fx := newFixture(t)
	fx.extractor.Results = []*intent.Result{
		{Intent: intent.IntentFAQ, Confidence: 0.9, Slots: map[string]string{"product": "blue jacket"}},
	}

	out, err := fx.engine.HandleTurn(context.Background(), inbound("m1", "what's the price of the blue jacket"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(out.Text, "45.00") {
		t.Errorf("price missing from reply: %q", out.Text)
	}
	if !strings.Contains(out.Text, "catalog:jacket") {
		t.Errorf("catalog attribution missing: %q", out.Text)
	}
}

// Scenario C: two failing candidates then a success writes one usage record
// and the matching health entries.
func TestFailoverWritesUsageForSuccessOnly(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.extractor.Results = []*intent.Result{
		{Intent: intent.IntentFAQ, Confidence: 0.9, Slots: map[string]string{"product": "blue jacket"}},
	}
	// A simple question routes cheap: openai first, then anthropic, google.
	fx.providers["openai"].Errs = []error{errors.New("timeout")}
	fx.providers["anthropic"].Errs = []error{errors.New("timeout")}

	out, err := fx.engine.HandleTurn(ctx, inbound("m1", "what's the price of the blue jacket"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(out.Text, "45.00") {
		t.Errorf("third candidate should have answered: %q", out.Text)
	}

	records, err := fx.usage.Recent(ctx, "acme", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one usage record, got %d", len(records))
	}
	if records[0].Provider != "google" || !records[0].Success {
		t.Errorf("usage should record the successful attempt: %+v", records[0])
	}

	failures := 0
	successes := 0
	for _, st := range fx.health.Snapshot() {
		failures += st.Failures
		successes += st.Successes
	}
	if failures != 2 || successes != 1 {
		t.Errorf("health shows %d failures, %d successes; want 2 and 1", failures, successes)
	}
}

// Scenario D: an explicit human request hands off in the same turn, and
// later messages get no automated reply until cleared.
func TestHandoffSilencesFollowUps(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.extractor.Results = []*intent.Result{
		{Intent: intent.IntentHandoff, Confidence: 0.95, Slots: map[string]string{}},
	}
	out, err := fx.engine.HandleTurn(ctx, inbound("m1", "let me talk to a real person"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(out.Text, "team") {
		t.Errorf("expected handoff message, got %q", out.Text)
	}
	conv, _ := fx.store.Get(ctx, "conv-1")
	if conv.State != conversation.StateAwaitingHandoff {
		t.Fatalf("expected handoff state, got %s", conv.State)
	}

	calls := fx.extractor.Calls
	out, err = fx.engine.HandleTurn(ctx, inbound("m2", "hello?"))
	if err != nil {
		t.Fatalf("follow-up HandleTurn: %v", err)
	}
	if !out.Empty() {
		t.Errorf("handed-off conversation must stay silent, got %q", out.Text)
	}
	if fx.extractor.Calls != calls {
		t.Error("extractor ran on a handed-off conversation")
	}

	if err := fx.engine.ClearHandoff(ctx, "conv-1"); err != nil {
		t.Fatalf("ClearHandoff: %v", err)
	}
	fx.extractor.Results = append(fx.extractor.Results,
		&intent.Result{Intent: intent.IntentGreeting, Confidence: 0.9, Slots: map[string]string{}})
	out, err = fx.engine.HandleTurn(ctx, inbound("m3", "hi"))
	if err != nil {
		t.Fatalf("post-clear HandleTurn: %v", err)
	}
	if out.Empty() {
		t.Error("cleared conversation should answer again")
	}
}

func TestProviderExhaustionHandsOff(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.extractor.Results = []*intent.Result{
		{Intent: intent.IntentFAQ, Confidence: 0.9, Slots: map[string]string{"product": "blue jacket"}},
	}
	boom := errors.New("unreachable")
	for _, p := range fx.providers {
		p.Errs = []error{boom, boom, boom}
	}

	out, err := fx.engine.HandleTurn(ctx, inbound("m1", "what's the price of the blue jacket"))
	if err != nil {
		t.Fatalf("exhaustion must not surface as an error: %v", err)
	}
	if out.Empty() {
		t.Error("customer must still get a reply")
	}
	conv, _ := fx.store.Get(ctx, "conv-1")
	if conv.State != conversation.StateAwaitingHandoff {
		t.Errorf("exhaustion should hand off, got %s", conv.State)
	}
}

func TestExtractorFailureGetsClarification(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.extractor.Errs = []error{errors.New("extractor down")}

	out, err := fx.engine.HandleTurn(ctx, inbound("m1", "mumble"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if out.Empty() {
		t.Error("turn must be answered, never silent")
	}
	conv, _ := fx.store.Get(ctx, "conv-1")
	if conv.LowConfidence != 1 {
		t.Errorf("low-confidence counter should be 1, got %d", conv.LowConfidence)
	}
}

func TestConsecutiveLowConfidenceHandsOff(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	low := &intent.Result{Intent: intent.IntentOther, Confidence: 0.2, Slots: map[string]string{}}
	fx.extractor.Results = []*intent.Result{low, low, low}

	for i, msgID := range []string{"m1", "m2", "m3"} {
		out, err := fx.engine.HandleTurn(ctx, inbound(msgID, "???"))
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		if out.Empty() {
			t.Fatalf("turn %d got no reply", i+1)
		}
	}

	conv, _ := fx.store.Get(ctx, "conv-1")
	if conv.State != conversation.StateAwaitingHandoff {
		t.Errorf("third sub-threshold turn should hand off, got %s", conv.State)
	}
}

func TestDuplicateMessageReplaysWithoutSideEffects(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.extractor.Results = []*intent.Result{
		{Intent: intent.IntentGreeting, Confidence: 0.9, Slots: map[string]string{}},
	}
	first, err := fx.engine.HandleTurn(ctx, inbound("m1", "hi"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	calls := fx.extractor.Calls

	replay, err := fx.engine.HandleTurn(ctx, inbound("m1", "hi"))
	if err != nil {
		t.Fatalf("replay HandleTurn: %v", err)
	}
	if replay.Text != first.Text {
		t.Errorf("replay differs: %q vs %q", replay.Text, first.Text)
	}
	if fx.extractor.Calls != calls {
		t.Error("replay re-ran the extractor")
	}
}

func TestYesNoAdvanceSkipsExtractor(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, _ := fx.store.GetOrCreate(ctx, "conv-1", "acme", "cust-1")
	conv.EnterFlow(flows.FlowBooking, "confirm")
	conv.Metadata["service_id"] = "haircut"
	conv.Metadata["service_name"] = "Haircut"
	conv.Metadata["booking_date"] = "2026-09-04"
	conv.Metadata["booking_time"] = "14:30"
	if err := fx.store.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := fx.engine.HandleTurn(ctx, inbound("m1", "yes"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if fx.extractor.Calls != 0 {
		t.Errorf("yes/no reply reached the extractor")
	}
	if !strings.Contains(out.Text, "booked") {
		t.Errorf("expected booking confirmation, got %q", out.Text)
	}
}

func TestCorruptMenuResetsConversation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	conv, _ := fx.store.GetOrCreate(ctx, "conv-1", "acme", "cust-1")
	conv.PresentMenu([]conversation.MenuOption{
		{Label: "Ghost", Payload: "item:does-not-exist", Flow: flows.FlowBooking},
	})
	if err := fx.store.Save(ctx, conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := fx.engine.HandleTurn(ctx, inbound("m1", "1"))
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if out.Empty() {
		t.Error("corruption must still answer the customer")
	}

	saved, _ := fx.store.Get(ctx, "conv-1")
	if saved.State != conversation.StateIdle {
		t.Errorf("corrupted conversation should reset to idle, got %s", saved.State)
	}
}
