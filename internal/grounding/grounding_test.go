package grounding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/shoptalk/internal/intent"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

// fakeSource is a configurable test source.
type fakeSource struct {
	sourceType SourceType
	facts      []SourceFact
	err        error
	delay      time.Duration
}

func (f *fakeSource) Type() SourceType { return f.sourceType }

func (f *fakeSource) Lookup(ctx context.Context, q Query, limit int) ([]SourceFact, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	facts := f.facts
	if len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

func fact(st SourceType, title, excerpt string, relevance float64) SourceFact {
	return SourceFact{Source: st, Title: title, Excerpt: excerpt, Relevance: relevance, Origin: string(st) + ":" + title}
}

func TestFetchMergesAndRanks(t *testing.T) {
	docs := &fakeSource{sourceType: SourceDocument, facts: []SourceFact{
		fact(SourceDocument, "Shipping", "We ship jackets worldwide", 0.9),
	}}
	cat := &fakeSource{sourceType: SourceCatalog, facts: []SourceFact{
		fact(SourceCatalog, "Blue Jacket", "Blue Jacket — 45.00 USD", 0.8),
	}}

	engine := NewEngine([]Source{docs, cat}, time.Second, nil)
	snap := tenant.Defaults("acme")

	got := engine.Fetch(context.Background(), Query{
		TenantID: "acme",
		Intent:   intent.IntentBrowse,
		Text:     "blue jacket price",
	}, snap)

	if got.Empty() {
		t.Fatal("expected facts")
	}
	if len(got.Facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(got.Facts))
	}
	// The catalog fact matches more query terms; keyword weighting should
	// not sink it below the document fact despite the lower semantic score.
	if !strings.Contains(got.Summary, "45.00") {
		t.Errorf("summary must restate retrieved content: %q", got.Summary)
	}
	for _, f := range got.Facts {
		if f.Origin == "" {
			t.Errorf("fact without origin: %+v", f)
		}
	}
}

func TestFetchDropsFailingSource(t *testing.T) {
	good := &fakeSource{sourceType: SourceCatalog, facts: []SourceFact{
		fact(SourceCatalog, "Blue Jacket", "45.00 USD", 0.8),
	}}
	bad := &fakeSource{sourceType: SourceDocument, err: errors.New("store offline")}

	engine := NewEngine([]Source{good, bad}, time.Second, nil)
	got := engine.Fetch(context.Background(), Query{TenantID: "acme", Text: "jacket"}, tenant.Defaults("acme"))

	if len(got.Facts) != 1 || got.Facts[0].Source != SourceCatalog {
		t.Errorf("expected only the healthy source's fact, got %+v", got.Facts)
	}
}

func TestFetchTimesBoxesSlowSource(t *testing.T) {
	slow := &fakeSource{sourceType: SourceDocument, delay: 500 * time.Millisecond, facts: []SourceFact{
		fact(SourceDocument, "Slow", "too late", 0.9),
	}}
	fast := &fakeSource{sourceType: SourceCatalog, facts: []SourceFact{
		fact(SourceCatalog, "Fast", "in time", 0.5),
	}}

	engine := NewEngine([]Source{slow, fast}, 50*time.Millisecond, nil)

	start := time.Now()
	got := engine.Fetch(context.Background(), Query{TenantID: "acme", Text: "x"}, tenant.Defaults("acme"))
	elapsed := time.Since(start)

	if elapsed > 400*time.Millisecond {
		t.Errorf("slow source blocked the fetch: %v", elapsed)
	}
	if len(got.Facts) != 1 || got.Facts[0].Title != "Fast" {
		t.Errorf("expected only the fast fact, got %+v", got.Facts)
	}
}

func TestFetchEmptyResultIsEmptyNotFabricated(t *testing.T) {
	empty := &fakeSource{sourceType: SourceDocument}
	engine := NewEngine([]Source{empty}, time.Second, nil)

	got := engine.Fetch(context.Background(), Query{TenantID: "acme", Text: "anything"}, tenant.Defaults("acme"))
	if !got.Empty() {
		t.Fatalf("expected empty context, got %+v", got.Facts)
	}
	if got.Summary != "" {
		t.Errorf("summary must be empty when nothing was retrieved, got %q", got.Summary)
	}
}

func TestFetchTruncatesPerSource(t *testing.T) {
	var many []SourceFact
	for i := 0; i < 10; i++ {
		many = append(many, fact(SourceDocument, "Doc", "content", float64(i)/10))
	}
	docs := &fakeSource{sourceType: SourceDocument, facts: many}

	engine := NewEngine([]Source{docs}, time.Second, nil)
	snap := tenant.Defaults("acme") // document cap defaults to 3

	got := engine.Fetch(context.Background(), Query{TenantID: "acme", Text: "doc"}, snap)
	if len(got.Facts) != snap.DocumentResults {
		t.Errorf("expected %d document facts, got %d", snap.DocumentResults, len(got.Facts))
	}
}

func TestRequired(t *testing.T) {
	if !Required(intent.IntentFAQ) || !Required(intent.IntentBrowse) {
		t.Error("faq and browse must require grounding")
	}
	if Required(intent.IntentGreeting) || Required(intent.IntentHandoff) {
		t.Error("greeting and handoff must not require grounding")
	}
}

func TestKeywordOverlap(t *testing.T) {
	if got := keywordOverlap("blue jacket", "Blue Jacket — 45.00 USD"); got != 1.0 {
		t.Errorf("expected full overlap, got %f", got)
	}
	if got := keywordOverlap("red scarf", "Blue Jacket"); got != 0 {
		t.Errorf("expected zero overlap, got %f", got)
	}
	if got := keywordOverlap("", "anything"); got != 0 {
		t.Errorf("empty query must score 0, got %f", got)
	}
}
