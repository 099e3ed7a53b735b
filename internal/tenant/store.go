package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ziadkadry99/shoptalk/internal/db"
)

// ErrNotFound is returned when a tenant has no stored snapshot.
var ErrNotFound = errors.New("tenant not found")

// Store persists tenant snapshots as versioned JSON documents.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Get loads a tenant snapshot, unmarshalling the stored document over the
// defaults so missing fields keep their default values.
func (s *Store) Get(ctx context.Context, tenantID string) (*Snapshot, error) {
	var (
		version int
		doc     string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT version, snapshot FROM tenants WHERE id = ?", tenantID,
	).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading tenant %s: %w", tenantID, err)
	}

	snap := Defaults(tenantID)
	if err := json.Unmarshal([]byte(doc), snap); err != nil {
		return nil, fmt.Errorf("decoding tenant %s snapshot: %w", tenantID, err)
	}
	snap.TenantID = tenantID
	snap.Version = version
	return snap, nil
}

// Put upserts a tenant snapshot, bumping its version.
func (s *Store) Put(ctx context.Context, snap *Snapshot) (*Snapshot, error) {
	if snap.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	doc, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding tenant snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, version, snapshot, updated_at)
		VALUES (?, 1, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			version = version + 1,
			snapshot = excluded.snapshot,
			updated_at = datetime('now')`,
		snap.TenantID, string(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("saving tenant %s: %w", snap.TenantID, err)
	}

	return s.Get(ctx, snap.TenantID)
}

// List returns all tenant ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM tenants ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Cache is an in-process snapshot cache with explicit invalidation.
// Snapshots are read many times per second but change rarely.
type Cache struct {
	store *Store
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewCache creates a cache over the given store.
func NewCache(store *Store) *Cache {
	return &Cache{store: store, snaps: map[string]*Snapshot{}}
}

// Get returns the cached snapshot, loading it on a miss.
func (c *Cache) Get(ctx context.Context, tenantID string) (*Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.snaps[tenantID]
	c.mu.RUnlock()
	if ok {
		return snap, nil
	}

	snap, err := c.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snaps[tenantID] = snap
	c.mu.Unlock()
	return snap, nil
}

// Invalidate drops the cached snapshot for a tenant.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.snaps, tenantID)
	c.mu.Unlock()
}
