package routing

import (
	"testing"

	"github.com/ziadkadry99/shoptalk/internal/config"
	"github.com/ziadkadry99/shoptalk/internal/llm"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

func testScorer() *Scorer {
	return NewScorer(config.DefaultComplexKeywords, 100_000)
}

func TestScorerIsPure(t *testing.T) {
	scorer := testScorer()
	sig := TurnSignals{
		Text:              "please compare the blue jacket with the red one and calculate shipping",
		ConversationDepth: 7,
		ContextTokens:     1500,
	}

	first := scorer.Score(sig)
	for i := 0; i < 100; i++ {
		if got := scorer.Score(sig); got != first {
			t.Fatalf("score changed across invocations: %f vs %f", got, first)
		}
	}
	if first < 0 || first > 1 {
		t.Errorf("score out of range: %f", first)
	}
}

func TestScorerKeywordsRaiseScore(t *testing.T) {
	scorer := testScorer()
	plain := scorer.Score(TurnSignals{Text: "hello there"})
	loaded := scorer.Score(TurnSignals{Text: "compare and calculate and troubleshoot this"})
	if loaded <= plain {
		t.Errorf("keyword hits should raise the score: %f <= %f", loaded, plain)
	}
}

func TestScorerLargeContext(t *testing.T) {
	scorer := testScorer()
	if scorer.NeedsLargeContext(100_000) {
		t.Error("threshold is exclusive")
	}
	if !scorer.NeedsLargeContext(100_001) {
		t.Error("expected large-context requirement above threshold")
	}
}

func TestRouterTierSelection(t *testing.T) {
	cfg := config.DefaultConfig().Routing
	router := NewRouter(cfg)
	snap := tenant.Defaults("acme")

	cases := []struct {
		name          string
		score         float64
		contextTokens int
		want          Tier
	}{
		{"cheap below low", 0.1, 0, TierCheap},
		{"balanced mid band", 0.5, 0, TierBalanced},
		{"premium above high", 0.9, 0, TierPremium},
		{"large context wins", 0.1, 150_000, TierLargeContext},
		{"boundary is balanced", 0.3, 0, TierBalanced},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := router.Decide(tc.score, tc.contextTokens, snap)
			if d.Tier != tc.want {
				t.Errorf("got tier %s, want %s (%s)", d.Tier, tc.want, d.Reason)
			}
		})
	}
}

func TestDecisionNeverRepeatsPrimaryInFallbacks(t *testing.T) {
	cfg := config.DefaultConfig().Routing
	router := NewRouter(cfg)
	snap := tenant.Defaults("acme")
	// A candidate list that contains the primary and duplicates.
	snap.Candidates = []llm.ModelRef{
		cfg.Cheap,
		cfg.Cheap,
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001"},
		{Provider: "anthropic", Model: "claude-haiku-4-5-20251001"},
	}

	for _, score := range []float64{0.1, 0.5, 0.9} {
		d := router.Decide(score, 0, snap)
		seen := map[llm.ModelRef]bool{d.Primary: true}
		for _, ref := range d.Fallbacks {
			if ref == d.Primary {
				t.Errorf("fallback chain contains primary %s", ref.Key())
			}
			if seen[ref] {
				t.Errorf("fallback chain contains duplicate %s", ref.Key())
			}
			seen[ref] = true
		}
		if len(d.Fallbacks) < 1 {
			t.Errorf("fallback chain must have at least one entry, score %.1f", score)
		}
	}
}

func TestTenantTierOverride(t *testing.T) {
	cfg := config.DefaultConfig().Routing
	router := NewRouter(cfg)

	snap := tenant.Defaults("acme")
	override := llm.ModelRef{Provider: "minimax", Model: "MiniMax-M2.5-highspeed"}
	snap.TierOverrides = map[string]llm.ModelRef{"cheap": override}

	d := router.Decide(0.1, 0, snap)
	if d.Primary != override {
		t.Errorf("expected tenant override %s, got %s", override.Key(), d.Primary.Key())
	}
	// Other tiers keep service defaults.
	d = router.Decide(0.9, 0, snap)
	if d.Primary != cfg.Premium {
		t.Errorf("premium tier should not be affected, got %s", d.Primary.Key())
	}
}

func TestFallbacksWhenTenantListOnlyHasPrimary(t *testing.T) {
	cfg := config.DefaultConfig().Routing
	router := NewRouter(cfg)

	snap := tenant.Defaults("acme")
	snap.Candidates = []llm.ModelRef{cfg.Cheap}

	d := router.Decide(0.1, 0, snap) // primary == cheap
	if len(d.Fallbacks) < 1 {
		t.Fatal("chain must never be empty")
	}
	if d.Fallbacks[0] == d.Primary {
		t.Error("substitute fallback equals primary")
	}
}

func TestCandidatesOrder(t *testing.T) {
	cfg := config.DefaultConfig().Routing
	router := NewRouter(cfg)
	d := router.Decide(0.5, 0, tenant.Defaults("acme"))

	all := d.Candidates()
	if all[0] != d.Primary {
		t.Error("primary must lead the candidate order")
	}
	if len(all) != len(d.Fallbacks)+1 {
		t.Errorf("candidate count mismatch: %d vs %d fallbacks", len(all), len(d.Fallbacks))
	}
}
