// Package grounding assembles verified business facts before any model
// call. Facts come from up to three independent sources fetched in
// parallel; a slow or failing source is dropped, never blocks the others.
package grounding

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ziadkadry99/shoptalk/internal/intent"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

// SourceType identifies where a fact came from.
type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceCatalog  SourceType = "catalog"
	SourceExternal SourceType = "external"
)

// SourceFact is one retrieved fact with its attribution origin.
type SourceFact struct {
	Source    SourceType `json:"source"`
	Title     string     `json:"title"`
	Excerpt   string     `json:"excerpt"`
	Relevance float64    `json:"relevance"`
	Origin    string     `json:"origin"`
}

// Query is the retrieval request for one turn.
type Query struct {
	TenantID string
	Intent   intent.Intent
	Slots    map[string]string
	Text     string
	Summary  string
}

// Context is the grounded result handed to the reasoning layer. When Facts
// is empty the downstream handler must answer "I don't have that
// information" for grounding-required intents instead of letting the model
// answer ungrounded.
type Context struct {
	Summary string
	Facts   []SourceFact
}

// Empty reports whether nothing was retrieved.
func (c *Context) Empty() bool { return c == nil || len(c.Facts) == 0 }

// Source is one independent fact provider. Lookup returns facts with their
// semantic relevance already set; the engine applies keyword weighting.
type Source interface {
	Type() SourceType
	Lookup(ctx context.Context, q Query, limit int) ([]SourceFact, error)
}

// Required reports whether an intent must be grounded before answering.
// Product, price, and policy questions must never be answered from model
// memory alone.
func Required(it intent.Intent) bool {
	switch it {
	case intent.IntentFAQ, intent.IntentBrowse, intent.IntentPaymentHelp:
		return true
	}
	return false
}

// Engine fans out to the configured sources and merges their facts.
type Engine struct {
	sources []Source
	budget  time.Duration
	logger  *slog.Logger
}

// NewEngine creates a grounding engine. budget bounds each source lookup
// independently.
func NewEngine(sources []Source, budget time.Duration, logger *slog.Logger) *Engine {
	if budget <= 0 {
		budget = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sources: sources,
		budget:  budget,
		logger:  logger.With("component", "grounding"),
	}
}

type sourceResult struct {
	sourceType SourceType
	facts      []SourceFact
	err        error
}

// Fetch runs all sources in parallel, each with its own timeout, merges
// and ranks the facts with the tenant's weights, truncates per source, and
// synthesizes a summary. It never fails: lost sources are logged and
// dropped, and an empty context is a valid result.
func (e *Engine) Fetch(ctx context.Context, q Query, snap *tenant.Snapshot) *Context {
	caps := map[SourceType]int{
		SourceDocument: snap.DocumentResults,
		SourceCatalog:  snap.CatalogResults,
		SourceExternal: snap.ExternalResults,
	}

	results := make(chan sourceResult, len(e.sources))
	for _, src := range e.sources {
		go func(src Source) {
			lookupCtx, cancel := context.WithTimeout(ctx, e.budget)
			defer cancel()

			limit := caps[src.Type()]
			if limit <= 0 {
				results <- sourceResult{sourceType: src.Type()}
				return
			}
			facts, err := src.Lookup(lookupCtx, q, limit)
			results <- sourceResult{sourceType: src.Type(), facts: facts, err: err}
		}(src)
	}

	byType := map[SourceType][]SourceFact{}
	for range e.sources {
		res := <-results
		if res.err != nil {
			e.logger.Warn("grounding source dropped",
				"tenant", q.TenantID, "source", string(res.sourceType), "error", res.err)
			continue
		}
		byType[res.sourceType] = append(byType[res.sourceType], res.facts...)
	}

	var merged []SourceFact
	for sourceType, facts := range byType {
		for i := range facts {
			semantic := facts[i].Relevance
			keyword := keywordOverlap(q.Text, facts[i].Title+" "+facts[i].Excerpt)
			facts[i].Relevance = snap.SemanticWeight*semantic + snap.KeywordWeight*keyword
		}
		sort.SliceStable(facts, func(i, j int) bool {
			return facts[i].Relevance > facts[j].Relevance
		})
		if limit := caps[sourceType]; len(facts) > limit {
			facts = facts[:limit]
		}
		merged = append(merged, facts...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})

	return &Context{
		Summary: synthesize(merged),
		Facts:   merged,
	}
}

// synthesize builds a compact summary that restates retrieved content only.
// An empty fact list yields an empty summary, never fabricated text.
func synthesize(facts []SourceFact) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range facts {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		if f.Title != "" {
			b.WriteString(f.Title)
			b.WriteString(": ")
		}
		b.WriteString(f.Excerpt)
	}
	return b.String()
}

// keywordOverlap is the fraction of query terms present in the fact text.
func keywordOverlap(query, factText string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(factText)
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
