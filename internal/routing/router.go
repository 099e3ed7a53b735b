package routing

import (
	"fmt"

	"github.com/ziadkadry99/shoptalk/internal/config"
	"github.com/ziadkadry99/shoptalk/internal/llm"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

// Tier names the threshold rule that selected the model. Tenants may rebind
// the model attached to a tier, never the tier boundaries.
type Tier string

const (
	TierLargeContext Tier = "large_context"
	TierCheap        Tier = "cheap"
	TierPremium      Tier = "premium"
	TierBalanced     Tier = "balanced"
)

// Decision is the routing outcome for one reasoning call.
type Decision struct {
	Primary    llm.ModelRef
	Tier       Tier
	Complexity float64
	Fallbacks  []llm.ModelRef
	Reason     string
}

// Candidates returns the primary followed by the fallback chain, the order
// the failover client tries them in.
func (d Decision) Candidates() []llm.ModelRef {
	out := make([]llm.ModelRef, 0, len(d.Fallbacks)+1)
	out = append(out, d.Primary)
	out = append(out, d.Fallbacks...)
	return out
}

// Router applies the ordered threshold rules.
type Router struct {
	cfg config.RoutingConfig
}

// NewRouter creates a router over the service routing configuration.
func NewRouter(cfg config.RoutingConfig) *Router {
	return &Router{cfg: cfg}
}

// Decide maps (score, context size, tenant snapshot) to a decision. Rules
// evaluate top-down: large-context need wins, then the cheap and premium
// thresholds, then the balanced default.
func (r *Router) Decide(score float64, contextTokens int, snap *tenant.Snapshot) Decision {
	var (
		tier   Tier
		reason string
	)
	switch {
	case contextTokens > r.cfg.LargeContextTokens:
		tier = TierLargeContext
		reason = fmt.Sprintf("context %d tokens exceeds large-context threshold %d",
			contextTokens, r.cfg.LargeContextTokens)
	case score < r.cfg.LowThreshold:
		tier = TierCheap
		reason = fmt.Sprintf("complexity %.2f below low threshold %.2f", score, r.cfg.LowThreshold)
	case score > r.cfg.HighThreshold:
		tier = TierPremium
		reason = fmt.Sprintf("complexity %.2f above high threshold %.2f", score, r.cfg.HighThreshold)
	default:
		tier = TierBalanced
		reason = fmt.Sprintf("complexity %.2f in balanced band", score)
	}

	primary := r.binding(tier, snap)

	return Decision{
		Primary:    primary,
		Tier:       tier,
		Complexity: score,
		Fallbacks:  r.fallbacks(primary, snap),
		Reason:     reason,
	}
}

// binding resolves the model for a tier, tenant override first.
func (r *Router) binding(tier Tier, snap *tenant.Snapshot) llm.ModelRef {
	if snap != nil {
		if ref, ok := snap.TierBinding(string(tier)); ok {
			return ref
		}
	}
	switch tier {
	case TierLargeContext:
		return r.cfg.LargeContext
	case TierCheap:
		return r.cfg.Cheap
	case TierPremium:
		return r.cfg.Premium
	default:
		return r.cfg.Balanced
	}
}

// fallbacks builds the ordered chain: the tenant's candidate list (or the
// service default) minus the primary, deduplicated. The chain is never
// empty; if filtering leaves nothing, the balanced or cheap binding steps
// in so the failover client always has a second option.
func (r *Router) fallbacks(primary llm.ModelRef, snap *tenant.Snapshot) []llm.ModelRef {
	candidates := r.cfg.Candidates
	if snap != nil && len(snap.Candidates) > 0 {
		candidates = snap.Candidates
	}

	seen := map[llm.ModelRef]bool{primary: true}
	var chain []llm.ModelRef
	for _, ref := range candidates {
		if ref.IsZero() || seen[ref] {
			continue
		}
		seen[ref] = true
		chain = append(chain, ref)
	}

	if len(chain) == 0 {
		for _, ref := range []llm.ModelRef{r.cfg.Balanced, r.cfg.Cheap, r.cfg.Premium} {
			if !ref.IsZero() && ref != primary {
				chain = append(chain, ref)
				break
			}
		}
	}
	return chain
}
