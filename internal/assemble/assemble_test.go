package assemble

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ziadkadry99/shoptalk/internal/grounding"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

func TestTruncatePrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence follows. Third one is quite a bit longer than the rest."
	got := Truncate(text, 50)
	if got != "First sentence here. Second sentence follows." {
		t.Errorf("got %q", got)
	}
}

func TestTruncateFallsBackToWordBoundary(t *testing.T) {
	text := strings.Repeat("word ", 40) // no sentence terminators at all
	got := Truncate(text, 52)
	if len(got) > 52+len("…") {
		t.Errorf("too long: %d", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("missing ellipsis: %q", got)
	}
	if strings.Contains(got, "wor…") {
		t.Errorf("cut mid-word: %q", got)
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	text := strings.Repeat("商品と価格", 40) // no spaces, no sentence terminators
	got := Truncate(text, 25)
	if !utf8.ValidString(got) {
		t.Errorf("invalid utf-8: %q", got)
	}
	if len(got) > 25 {
		t.Errorf("too long: %d", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("missing ellipsis: %q", got)
	}
}

func TestTruncateShortTextUntouched(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("got %q", got)
	}
}

func TestFinalizeAppendsAttribution(t *testing.T) {
	snap := tenant.Defaults("acme")
	got := Finalize(Input{
		Draft: "The Blue Jacket is 45.00 USD.",
		Snap:  snap,
		Facts: []grounding.SourceFact{
			{Source: grounding.SourceCatalog, Title: "Blue Jacket", Origin: "catalog:jacket"},
			{Source: grounding.SourceCatalog, Title: "Blue Jacket", Origin: "catalog:jacket"}, // duplicate
		},
		Grounded: true,
	})
	if !strings.Contains(got, "Sources:") || !strings.Contains(got, "catalog:jacket") {
		t.Errorf("attribution missing: %q", got)
	}
	if strings.Count(got, "catalog:jacket") != 1 {
		t.Errorf("duplicate origin not collapsed: %q", got)
	}
}

func TestFinalizeSkipsAttributionWhenDisabled(t *testing.T) {
	snap := tenant.Defaults("acme")
	snap.Attribution = false
	got := Finalize(Input{
		Draft:    "answer",
		Snap:     snap,
		Facts:    []grounding.SourceFact{{Origin: "doc:x"}},
		Grounded: true,
	})
	if strings.Contains(got, "Sources:") {
		t.Errorf("attribution should be off: %q", got)
	}
}

func TestDisclaimersSurviveTruncation(t *testing.T) {
	snap := tenant.Defaults("acme")
	snap.MaxResponseLength = 60
	snap.Persona.Disclaimers = []string{"Prices may vary in store."}

	long := strings.Repeat("A full sentence right here. ", 20)
	got := Finalize(Input{Draft: long, Snap: snap})

	if !strings.Contains(got, "Prices may vary in store.") {
		t.Errorf("disclaimer dropped: %q", got)
	}
	if len(got) > snap.MaxResponseLength {
		t.Errorf("assembled length %d exceeds limit %d: %q", len(got), snap.MaxResponseLength, got)
	}
}

func TestFinalizeHoldsLimitWhenDraftFillsIt(t *testing.T) {
	snap := tenant.Defaults("acme")
	snap.MaxResponseLength = 60
	snap.Persona.Disclaimers = []string{"Prices may vary in store and online."}

	got := Finalize(Input{
		Draft: "This is a full sentence. Another full sentence follows it.",
		Snap:  snap,
	})
	if len(got) > snap.MaxResponseLength {
		t.Errorf("assembled length %d exceeds limit %d: %q", len(got), snap.MaxResponseLength, got)
	}
	if !strings.Contains(got, "Prices may vary in store and online.") {
		t.Errorf("disclaimer dropped: %q", got)
	}
}

func TestFinalizeDisclaimersLongerThanLimit(t *testing.T) {
	snap := tenant.Defaults("acme")
	snap.MaxResponseLength = 20
	snap.Persona.Disclaimers = []string{"This disclaimer alone is longer than the limit."}

	got := Finalize(Input{Draft: "A draft reply.", Snap: snap})
	if got != "This disclaimer alone is longer than the limit." {
		t.Errorf("got %q", got)
	}
}

func TestPersonaPreamble(t *testing.T) {
	snap := tenant.Defaults("acme")
	snap.Persona = tenant.Persona{
		Name:         "Maya",
		Tone:         "warm",
		Restrictions: []string{"Never discuss competitors."},
	}
	got := PersonaPreamble(snap)
	for _, want := range []string{"Maya", "warm", "Never discuss competitors."} {
		if !strings.Contains(got, want) {
			t.Errorf("preamble missing %q: %q", want, got)
		}
	}
}
