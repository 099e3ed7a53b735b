package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/shoptalk/internal/db"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func seedItems(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	items := []Item{
		{TenantID: "acme", Name: "Blue Jacket", Description: "Waterproof blue jacket", Price: 45.00, Kind: KindProduct, Active: true},
		{TenantID: "acme", Name: "Red Jacket", Description: "Lined red jacket", Price: 55.00, Kind: KindProduct, Active: true},
		{TenantID: "acme", Name: "Haircut", Description: "30 minute haircut", Price: 20.00, Kind: KindService, DurationMinutes: 30, Active: true},
		{TenantID: "acme", Name: "Old Coat", Description: "Discontinued", Price: 10.00, Kind: KindProduct, Active: false},
		{TenantID: "other", Name: "Blue Jacket", Description: "Different tenant", Price: 99.00, Kind: KindProduct, Active: true},
	}
	for _, item := range items {
		if _, err := store.Put(ctx, item); err != nil {
			t.Fatalf("seeding %s: %v", item.Name, err)
		}
	}
}

func TestSearchMatchesAllTerms(t *testing.T) {
	store := testStore(t)
	seedItems(t, store)

	items, err := store.Search(context.Background(), "acme", "blue jacket", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 match, got %d", len(items))
	}
	if items[0].Name != "Blue Jacket" || items[0].Price != 45.00 {
		t.Errorf("unexpected item: %+v", items[0])
	}
}

func TestSearchScopedToTenant(t *testing.T) {
	store := testStore(t)
	seedItems(t, store)

	items, err := store.Search(context.Background(), "other", "jacket", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 1 || items[0].Price != 99.00 {
		t.Errorf("expected the other tenant's jacket only, got %+v", items)
	}
}

func TestSearchExcludesInactive(t *testing.T) {
	store := testStore(t)
	seedItems(t, store)

	items, err := store.Search(context.Background(), "acme", "coat", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("inactive items must not match, got %+v", items)
	}
}

func TestListByKind(t *testing.T) {
	store := testStore(t)
	seedItems(t, store)

	services, err := store.ListByKind(context.Background(), "acme", KindService, 10)
	if err != nil {
		t.Fatalf("ListByKind failed: %v", err)
	}
	if len(services) != 1 || services[0].Name != "Haircut" {
		t.Errorf("expected only the haircut service, got %+v", services)
	}
}

func TestGetMissing(t *testing.T) {
	store := testStore(t)
	_, err := store.Get(context.Background(), "acme", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
