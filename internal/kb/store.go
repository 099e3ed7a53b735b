package kb

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// Result is one scored knowledge-base hit.
type Result struct {
	Chunk      Chunk
	Similarity float64
}

// Store holds one chromem collection per tenant, persisted as gob.gz files.
type Store struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
	dir       string

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// NewStore creates a knowledge-base store. When embedFunc is nil an OpenAI
// embedding function is built from OPENAI_API_KEY and the given model.
func NewStore(dir string, model string, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	if embedFunc == nil {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for knowledge-base embeddings")
		}
		embedFunc = chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model))
	}

	return &Store{
		db:          chromem.NewDB(),
		embedFunc:   embedFunc,
		dir:         dir,
		collections: map[string]*chromem.Collection{},
	}, nil
}

func collectionName(tenantID string) string { return "kb-" + tenantID }

func (s *Store) collection(tenantID string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[tenantID]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(collectionName(tenantID), nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection for tenant %s: %w", tenantID, err)
	}
	s.collections[tenantID] = col
	return col, nil
}

// Add embeds and stores chunks for a tenant.
func (s *Store) Add(ctx context.Context, tenantID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	col, err := s.collection(tenantID)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				"title":   c.Title,
				"section": c.Section,
			},
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Search runs a similarity query over a tenant's collection.
func (s *Store) Search(ctx context.Context, tenantID, query string, limit int) ([]Result, error) {
	col, err := s.collection(tenantID)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	hits, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("kb query for tenant %s: %w", tenantID, err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Chunk: Chunk{
				ID:       h.ID,
				TenantID: tenantID,
				Title:    h.Metadata["title"],
				Section:  h.Metadata["section"],
				Content:  h.Content,
			},
			Similarity: float64(h.Similarity),
		}
	}
	return results, nil
}

// Count returns the number of stored chunks for a tenant.
func (s *Store) Count(tenantID string) int {
	col, err := s.collection(tenantID)
	if err != nil {
		return 0
	}
	return col.Count()
}

// Persist exports the whole store to disk.
func (s *Store) Persist() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating kb directory: %w", err)
	}
	return s.db.ExportToFile(s.dir+"/kb.gob.gz", true, "")
}

// Load imports a previously persisted store. A missing file is not an error.
func (s *Store) Load() error {
	if s.dir == "" {
		return nil
	}
	path := s.dir + "/kb.gob.gz"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("importing kb store: %w", err)
	}

	// Drop cached handles so collections are re-acquired after import.
	s.mu.Lock()
	s.collections = map[string]*chromem.Collection{}
	s.mu.Unlock()
	return nil
}
