// Package catalog is the default catalog collaborator: a read-mostly SQLite
// table of products and services with keyword lookup. The conversation core
// only reads it; writes happen through seeding and admin tooling.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ziadkadry99/shoptalk/internal/db"
)

// Kind distinguishes purchasable products from bookable services.
type Kind string

const (
	KindProduct Kind = "product"
	KindService Kind = "service"
)

// Item is one catalog record.
type Item struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenant_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	Kind            Kind    `json:"kind"`
	DurationMinutes int     `json:"duration_minutes"`
	Active          bool    `json:"active"`
}

// Lookup is the read interface the core consumes. The SQLite store below is
// the default implementation; deployments may substitute their own.
type Lookup interface {
	Search(ctx context.Context, tenantID, query string, limit int) ([]Item, error)
	Get(ctx context.Context, tenantID, id string) (*Item, error)
	ListByKind(ctx context.Context, tenantID string, kind Kind, limit int) ([]Item, error)
}

// ErrNotFound is returned when an item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Store is the SQLite-backed catalog.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Put upserts an item. An empty ID gets a generated UUID.
func (s *Store) Put(ctx context.Context, item Item) (*Item, error) {
	if item.TenantID == "" || item.Name == "" {
		return nil, fmt.Errorf("tenant id and name are required")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Currency == "" {
		item.Currency = "USD"
	}
	if item.Kind == "" {
		item.Kind = KindProduct
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, tenant_id, name, description, price, currency, kind, duration_minutes, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price = excluded.price,
			currency = excluded.currency,
			kind = excluded.kind,
			duration_minutes = excluded.duration_minutes,
			active = excluded.active`,
		item.ID, item.TenantID, item.Name, item.Description, item.Price,
		item.Currency, string(item.Kind), item.DurationMinutes, boolToInt(item.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("saving catalog item: %w", err)
	}
	return &item, nil
}

// Get returns one active item by id.
func (s *Store) Get(ctx context.Context, tenantID, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, price, currency, kind, duration_minutes, active
		FROM catalog_items WHERE tenant_id = ? AND id = ?`, tenantID, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, err
}

// Search performs a keyword lookup over name and description. Every term
// must match at least one of the two columns.
func (s *Store) Search(ctx context.Context, tenantID, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}

	terms := strings.Fields(strings.ToLower(query))
	clauses := []string{"tenant_id = ?", "active = 1"}
	args := []any{tenantID}
	for _, term := range terms {
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}

	q := fmt.Sprintf(`
		SELECT id, tenant_id, name, description, price, currency, kind, duration_minutes, active
		FROM catalog_items WHERE %s ORDER BY name LIMIT %d`,
		strings.Join(clauses, " AND "), limit)

	return s.queryItems(ctx, q, args...)
}

// ListByKind returns active items of one kind, ordered by name.
func (s *Store) ListByKind(ctx context.Context, tenantID string, kind Kind, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 10
	}
	q := fmt.Sprintf(`
		SELECT id, tenant_id, name, description, price, currency, kind, duration_minutes, active
		FROM catalog_items WHERE tenant_id = ? AND kind = ? AND active = 1
		ORDER BY name LIMIT %d`, limit)
	return s.queryItems(ctx, q, tenantID, string(kind))
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (*Item, error) {
	var (
		item   Item
		kind   string
		active int
	)
	err := sc.Scan(&item.ID, &item.TenantID, &item.Name, &item.Description,
		&item.Price, &item.Currency, &kind, &item.DurationMinutes, &active)
	if err != nil {
		return nil, err
	}
	item.Kind = Kind(kind)
	item.Active = active != 0
	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
