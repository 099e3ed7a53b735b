// Package routing maps each turn to a cost-appropriate provider and model.
// Scoring and tier selection are pure functions: identical inputs always
// produce identical decisions, which keeps routing testable and auditable.
package routing

import "strings"

// TurnSignals are the deterministic inputs to the complexity score.
type TurnSignals struct {
	Text              string
	ConversationDepth int
	ContextTokens     int
}

// Scorer turns signals into a [0,1] complexity estimate. No model call,
// no randomness.
type Scorer struct {
	keywords           []string
	largeContextTokens int
}

// NewScorer creates a scorer with the configured complex-keyword list and
// large-context threshold.
func NewScorer(keywords []string, largeContextTokens int) *Scorer {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	if largeContextTokens <= 0 {
		largeContextTokens = 100_000
	}
	return &Scorer{keywords: lowered, largeContextTokens: largeContextTokens}
}

// Component weights. They sum to 1 so the score stays in [0,1].
const (
	weightDepth    = 0.25
	weightLength   = 0.25
	weightKeywords = 0.35
	weightContext  = 0.15

	depthSaturation  = 20  // turns
	lengthSaturation = 400 // characters
	keywordSaturated = 3   // keyword hits
)

// contextBonusTokens is where retrieved context starts counting toward
// complexity, well below the large-context threshold.
const contextBonusTokens = 2000

// Score returns the complexity estimate for the turn.
func (s *Scorer) Score(sig TurnSignals) float64 {
	depth := clamp01(float64(sig.ConversationDepth) / depthSaturation)
	length := clamp01(float64(len(sig.Text)) / lengthSaturation)

	lower := strings.ToLower(sig.Text)
	hits := 0
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	keywords := clamp01(float64(hits) / keywordSaturated)

	var contextScore float64
	if sig.ContextTokens > contextBonusTokens {
		contextScore = 1
	}

	return weightDepth*depth + weightLength*length + weightKeywords*keywords + weightContext*contextScore
}

// NeedsLargeContext reports whether the retrieved context alone forces a
// large-context-capable provider, regardless of the score.
func (s *Scorer) NeedsLargeContext(contextTokens int) bool {
	return contextTokens > s.largeContextTokens
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
