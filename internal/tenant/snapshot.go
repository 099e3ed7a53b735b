package tenant

import "github.com/ziadkadry99/shoptalk/internal/llm"

// Persona controls the voice a tenant's bot answers with.
type Persona struct {
	Name         string   `json:"name" yaml:"name"`
	Tone         string   `json:"tone" yaml:"tone"`
	Disclaimers  []string `json:"disclaimers" yaml:"disclaimers"`
	Restrictions []string `json:"restrictions" yaml:"restrictions"`
}

// Snapshot is the versioned, read-only view of one tenant's configuration.
// It is fetched once per turn and passed explicitly into every call so that
// routing and grounding decisions are reproducible.
type Snapshot struct {
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Version  int    `json:"version" yaml:"version"`

	Persona Persona `json:"persona" yaml:"persona"`

	// ConfidenceThreshold is the minimum extractor confidence before a turn
	// counts as low-confidence.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// MaxLowConfidenceTurns is how many consecutive sub-threshold turns are
	// tolerated before the conversation is handed off to a human.
	MaxLowConfidenceTurns int `json:"max_low_confidence_turns" yaml:"max_low_confidence_turns"`

	// TierOverrides rebinds the model used for a routing tier. Valid keys:
	// large_context, cheap, premium, balanced. Tier boundaries are
	// service-level and cannot be overridden.
	TierOverrides map[string]llm.ModelRef `json:"tier_overrides" yaml:"tier_overrides"`

	// Candidates is this tenant's ordered failover list. Empty means the
	// service default chain applies.
	Candidates []llm.ModelRef `json:"candidates" yaml:"candidates"`

	// Grounding weights and per-source result caps.
	SemanticWeight  float64 `json:"semantic_weight" yaml:"semantic_weight"`
	KeywordWeight   float64 `json:"keyword_weight" yaml:"keyword_weight"`
	DocumentResults int     `json:"document_results" yaml:"document_results"`
	CatalogResults  int     `json:"catalog_results" yaml:"catalog_results"`
	ExternalResults int     `json:"external_results" yaml:"external_results"`

	// AutoHandoffTopics are intents that always route to a human.
	AutoHandoffTopics []string `json:"auto_handoff_topics" yaml:"auto_handoff_topics"`

	MaxResponseLength int  `json:"max_response_length" yaml:"max_response_length"`
	Attribution       bool `json:"attribution" yaml:"attribution"`

	// ExternalLookupURL, when set, enables the external grounding source.
	ExternalLookupURL string `json:"external_lookup_url" yaml:"external_lookup_url"`
}

// Defaults returns the baseline snapshot for a tenant. Stored snapshots are
// unmarshalled over this base so absent fields keep their defaults.
func Defaults(tenantID string) *Snapshot {
	return &Snapshot{
		TenantID:              tenantID,
		Version:               0,
		Persona:               Persona{Name: "Assistant", Tone: "friendly"},
		ConfidenceThreshold:   0.6,
		MaxLowConfidenceTurns: 2,
		SemanticWeight:        0.7,
		KeywordWeight:         0.3,
		DocumentResults:       3,
		CatalogResults:        5,
		ExternalResults:       2,
		AutoHandoffTopics:     []string{"handoff"},
		MaxResponseLength:     960,
		Attribution:           true,
	}
}

// TierBinding returns the override for a tier, or ok=false when the tenant
// has none and the service default applies.
func (s *Snapshot) TierBinding(tier string) (llm.ModelRef, bool) {
	if s.TierOverrides == nil {
		return llm.ModelRef{}, false
	}
	ref, ok := s.TierOverrides[tier]
	if !ok || ref.IsZero() {
		return llm.ModelRef{}, false
	}
	return ref, true
}
