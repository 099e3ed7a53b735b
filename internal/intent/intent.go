// Package intent classifies inbound customer messages into a closed
// vocabulary and extracts structured slots. Extractor output crosses an
// untrusted-input boundary: it is validated as strictly as user input and
// never deserialized directly into persisted fields.
package intent

import "context"

// Intent is a closed-vocabulary label for what the customer wants this turn.
type Intent string

const (
	IntentBrowse      Intent = "browse"
	IntentBook        Intent = "book"
	IntentOrder       Intent = "order"
	IntentFAQ         Intent = "faq"
	IntentPaymentHelp Intent = "payment_help"
	IntentHandoff     Intent = "handoff"
	IntentGreeting    Intent = "greeting"
	IntentOther       Intent = "other"
)

// Known is the closed vocabulary. Anything outside it coerces to OTHER.
var Known = map[Intent]bool{
	IntentBrowse:      true,
	IntentBook:        true,
	IntentOrder:       true,
	IntentFAQ:         true,
	IntentPaymentHelp: true,
	IntentHandoff:     true,
	IntentGreeting:    true,
	IntentOther:       true,
}

// maxReasoningLen bounds the free-text reasoning carried on a result.
const maxReasoningLen = 500

// Result is the validated extraction outcome for one turn. It is transient
// and never persisted verbatim.
type Result struct {
	Intent     Intent
	Confidence float64
	Slots      map[string]string
	Reasoning  string
}

// Input is what the extractor classifies: the raw message plus a compact
// summary of the recent conversation.
type Input struct {
	Text    string
	Summary string
}

// Extractor is the single swappable classification capability.
type Extractor interface {
	Extract(ctx context.Context, in Input) (*Result, error)
}

// Sanitize coerces a raw extraction into a valid Result: unknown intents
// become OTHER with confidence capped at 0.5, confidence is clamped to
// [0, 1], reasoning is bounded, and non-scalar slot values are dropped
// upstream (slots arrive here already stringified).
func Sanitize(rawIntent string, confidence float64, slots map[string]string, reasoning string) *Result {
	r := &Result{
		Intent:     Intent(rawIntent),
		Confidence: confidence,
		Slots:      slots,
		Reasoning:  reasoning,
	}

	if r.Confidence < 0 {
		r.Confidence = 0
	} else if r.Confidence > 1 {
		r.Confidence = 1
	}

	if !Known[r.Intent] {
		r.Intent = IntentOther
		if r.Confidence > 0.5 {
			r.Confidence = 0.5
		}
	}

	if len(r.Reasoning) > maxReasoningLen {
		r.Reasoning = r.Reasoning[:maxReasoningLen]
	}

	if r.Slots == nil {
		r.Slots = map[string]string{}
	}
	return r
}
