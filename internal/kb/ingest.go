package kb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Ingester reads markdown files into a tenant's knowledge base.
type Ingester struct {
	store  *Store
	logger *slog.Logger
}

// NewIngester creates an Ingester over the given store.
func NewIngester(store *Store, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: store, logger: logger.With("component", "kb")}
}

// Ingest expands the glob pattern, chunks every matching markdown file, and
// stores the chunks for the tenant. The progress callback (may be nil) is
// invoked after each file. Returns the number of chunks stored.
func (i *Ingester) Ingest(ctx context.Context, tenantID, pattern string, progress func(done, total int)) (int, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return 0, fmt.Errorf("expanding glob %q: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		ext := strings.ToLower(filepath.Ext(m))
		if ext == ".md" || ext == ".markdown" {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no markdown files match %q", pattern)
	}

	total := 0
	for n, path := range files {
		source, err := os.ReadFile(path)
		if err != nil {
			return total, fmt.Errorf("reading %s: %w", path, err)
		}

		docID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		title := titleFromFilename(docID)

		chunks := ChunkMarkdown(docID, title, source)
		for idx := range chunks {
			chunks[idx].TenantID = tenantID
		}
		if err := i.store.Add(ctx, tenantID, chunks); err != nil {
			return total, err
		}
		total += len(chunks)

		i.logger.Info("ingested document",
			"tenant", tenantID, "file", path, "chunks", len(chunks))
		if progress != nil {
			progress(n+1, len(files))
		}
	}

	if err := i.store.Persist(); err != nil {
		return total, err
	}
	return total, nil
}

// titleFromFilename turns "shipping-policy" into "Shipping Policy".
func titleFromFilename(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
