package grounding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/kb"
)

// DocumentSource serves facts from the tenant's ingested knowledge base.
type DocumentSource struct {
	store *kb.Store
}

// NewDocumentSource creates a document source over the knowledge base.
func NewDocumentSource(store *kb.Store) *DocumentSource {
	return &DocumentSource{store: store}
}

func (s *DocumentSource) Type() SourceType { return SourceDocument }

func (s *DocumentSource) Lookup(ctx context.Context, q Query, limit int) ([]SourceFact, error) {
	results, err := s.store.Search(ctx, q.TenantID, q.Text, limit)
	if err != nil {
		return nil, fmt.Errorf("document lookup: %w", err)
	}

	facts := make([]SourceFact, 0, len(results))
	for _, r := range results {
		title := r.Chunk.Title
		if r.Chunk.Section != "" && r.Chunk.Section != title {
			title = title + " / " + r.Chunk.Section
		}
		facts = append(facts, SourceFact{
			Source:    SourceDocument,
			Title:     title,
			Excerpt:   r.Chunk.Content,
			Relevance: r.Similarity,
			Origin:    "doc:" + r.Chunk.ID,
		})
	}
	return facts, nil
}

// CatalogSource serves facts from the structured catalog. There is no
// embedding here; the semantic component is approximated by normalized
// term overlap against name and description.
type CatalogSource struct {
	lookup catalog.Lookup
}

// NewCatalogSource creates a catalog source over the given lookup.
func NewCatalogSource(lookup catalog.Lookup) *CatalogSource {
	return &CatalogSource{lookup: lookup}
}

func (s *CatalogSource) Type() SourceType { return SourceCatalog }

func (s *CatalogSource) Lookup(ctx context.Context, q Query, limit int) ([]SourceFact, error) {
	query := q.Text
	if product, ok := q.Slots["product"]; ok && product != "" {
		query = product
	} else if service, ok := q.Slots["service"]; ok && service != "" {
		query = service
	}

	items, err := s.lookup.Search(ctx, q.TenantID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	facts := make([]SourceFact, 0, len(items))
	for _, item := range items {
		excerpt := fmt.Sprintf("%s — %.2f %s", item.Name, item.Price, item.Currency)
		if item.Description != "" {
			excerpt += ". " + item.Description
		}
		facts = append(facts, SourceFact{
			Source:    SourceCatalog,
			Title:     item.Name,
			Excerpt:   excerpt,
			Relevance: termOverlap(q.Text, item.Name+" "+item.Description),
			Origin:    "catalog:" + item.ID,
		})
	}
	return facts, nil
}

// termOverlap mirrors keywordOverlap but stands in for a semantic score on
// sources without embeddings.
func termOverlap(query, text string) float64 {
	return keywordOverlap(query, text)
}

// ExternalSource queries a tenant-configured HTTP enrichment endpoint. The
// endpoint receives GET ?q=<text>&tenant=<id> and responds with a JSON
// array of {id, title, excerpt, score} objects.
type ExternalSource struct {
	endpoint func(tenantID string) string
	client   *http.Client
}

// NewExternalSource creates an external source. endpoint maps a tenant to
// its lookup URL; an empty URL disables the source for that tenant.
func NewExternalSource(endpoint func(tenantID string) string, client *http.Client) *ExternalSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &ExternalSource{endpoint: endpoint, client: client}
}

func (s *ExternalSource) Type() SourceType { return SourceExternal }

type externalHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
}

func (s *ExternalSource) Lookup(ctx context.Context, q Query, limit int) ([]SourceFact, error) {
	base := s.endpoint(q.TenantID)
	if base == "" {
		return nil, nil
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("external lookup url: %w", err)
	}
	params := u.Query()
	params.Set("q", q.Text)
	params.Set("tenant", q.TenantID)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("external lookup request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("external lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("external lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading external lookup response: %w", err)
	}

	var hits []externalHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("decoding external lookup response: %w", err)
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	facts := make([]SourceFact, 0, len(hits))
	for _, hit := range hits {
		score := hit.Score
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		facts = append(facts, SourceFact{
			Source:    SourceExternal,
			Title:     strings.TrimSpace(hit.Title),
			Excerpt:   strings.TrimSpace(hit.Excerpt),
			Relevance: score,
			Origin:    "external:" + hit.ID,
		})
	}
	return facts, nil
}
