package intent

import (
	"strings"
	"testing"
)

func TestParseExtractionValid(t *testing.T) {
	content := `{"intent": "book", "confidence": 0.92, "slots": {"service": "haircut", "date": "2026-09-01"}, "reasoning": "wants an appointment"}`

	res, err := ParseExtraction(content)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if res.Intent != IntentBook {
		t.Errorf("intent: got %q", res.Intent)
	}
	if res.Confidence != 0.92 {
		t.Errorf("confidence: got %f", res.Confidence)
	}
	if res.Slots["service"] != "haircut" || res.Slots["date"] != "2026-09-01" {
		t.Errorf("slots: got %+v", res.Slots)
	}
}

func TestParseExtractionStripsMarkdownFences(t *testing.T) {
	content := "```json\n{\"intent\": \"browse\", \"confidence\": 0.8, \"slots\": {}}\n```"
	res, err := ParseExtraction(content)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if res.Intent != IntentBrowse {
		t.Errorf("intent: got %q", res.Intent)
	}
}

func TestParseExtractionUnknownIntentCoercesToOther(t *testing.T) {
	content := `{"intent": "rm -rf /", "confidence": 0.99, "slots": {}}`
	res, err := ParseExtraction(content)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if res.Intent != IntentOther {
		t.Errorf("expected OTHER for unknown intent, got %q", res.Intent)
	}
	if res.Confidence > 0.5 {
		t.Errorf("confidence must be capped at 0.5 for coerced intents, got %f", res.Confidence)
	}
}

func TestParseExtractionRejectsMalformedOutput(t *testing.T) {
	for _, content := range []string{
		"I think the customer wants to buy something.",
		`{"confidence": 0.9}`,
		`{]`,
		"",
	} {
		if _, err := ParseExtraction(content); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestParseExtractionDropsNonScalarSlots(t *testing.T) {
	content := `{"intent": "order", "confidence": 0.7, "slots": {"product": "jacket", "items": ["a","b"], "meta": {"x":1}, "none": null, "quantity": 2}}`
	res, err := ParseExtraction(content)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if _, ok := res.Slots["items"]; ok {
		t.Error("array slot must be dropped")
	}
	if _, ok := res.Slots["meta"]; ok {
		t.Error("object slot must be dropped")
	}
	if _, ok := res.Slots["none"]; ok {
		t.Error("null slot must be dropped")
	}
	if res.Slots["quantity"] != "2" {
		t.Errorf("numeric slot should be stringified, got %q", res.Slots["quantity"])
	}
}

func TestSanitizeClampsConfidence(t *testing.T) {
	if r := Sanitize("faq", 1.7, nil, ""); r.Confidence != 1 {
		t.Errorf("expected clamp to 1, got %f", r.Confidence)
	}
	if r := Sanitize("faq", -0.3, nil, ""); r.Confidence != 0 {
		t.Errorf("expected clamp to 0, got %f", r.Confidence)
	}
}

func TestSanitizeBoundsReasoning(t *testing.T) {
	r := Sanitize("faq", 0.9, nil, strings.Repeat("x", 2000))
	if len(r.Reasoning) != maxReasoningLen {
		t.Errorf("expected reasoning bounded to %d, got %d", maxReasoningLen, len(r.Reasoning))
	}
}
