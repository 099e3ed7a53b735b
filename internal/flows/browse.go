package flows

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/grounding"
)

// Browse answers catalog questions deterministically from the catalog store:
// no model call is needed because the catalog is the source of truth for
// names and prices.
type Browse struct {
	catalog catalog.Lookup
	logger  *slog.Logger
}

func NewBrowse(deps Deps) *Browse {
	return &Browse{catalog: deps.Catalog, logger: deps.Logger}
}

func (b *Browse) Name() string { return FlowBrowse }

func (b *Browse) Start(ctx context.Context, t *Turn) (*Reply, error) {
	query := t.slot("product")
	if query == "" {
		query = t.slot("service")
	}
	if query == "" {
		query = t.Text
	}

	items, err := b.catalog.Search(ctx, t.Conv.TenantID, query, t.Snap.CatalogResults)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	if len(items) == 0 {
		// Fall back to the full product list before giving up.
		items, err = b.catalog.ListByKind(ctx, t.Conv.TenantID, catalog.KindProduct, t.Snap.CatalogResults)
		if err != nil {
			return nil, fmt.Errorf("listing products: %w", err)
		}
		if len(items) == 0 {
			return &Reply{Text: dontKnowReply}, nil
		}
		t.Conv.PresentMenu(itemMenu(items))
		return &Reply{
			Text:  "I couldn't find an exact match, but here's what we have. Reply with a number to pick one:\n" + conversation.RenderMenu(t.Conv.Menu),
			Facts: itemFacts(items),
		}, nil
	}

	if len(items) == 1 {
		item := items[0]
		t.Conv.Reset()
		text := fmt.Sprintf("%s is %.2f %s.", item.Name, item.Price, item.Currency)
		if item.Description != "" {
			text += " " + item.Description
		}
		text += " Would you like to order it? Just say \"order " + strings.ToLower(item.Name) + "\"."
		return &Reply{Text: text, Facts: itemFacts(items)}, nil
	}

	t.Conv.PresentMenu(itemMenu(items))
	return &Reply{
		Text:  "Here's what matches. Reply with a number to pick one:\n" + conversation.RenderMenu(t.Conv.Menu),
		Facts: itemFacts(items),
	}, nil
}

// Option handles both the top-menu "Browse products" entry and a concrete
// item selection from a browse result menu.
func (b *Browse) Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error) {
	if opt.Payload == "menu:browse" {
		items, err := b.catalog.ListByKind(ctx, t.Conv.TenantID, catalog.KindProduct, t.Snap.CatalogResults)
		if err != nil {
			return nil, fmt.Errorf("listing products: %w", err)
		}
		if len(items) == 0 {
			t.Conv.Reset()
			return &Reply{Text: "There are no products available right now."}, nil
		}
		t.Conv.PresentMenu(itemMenu(items))
		return &Reply{
			Text:  "Here's our catalog. Reply with a number to pick one:\n" + conversation.RenderMenu(t.Conv.Menu),
			Facts: itemFacts(items),
		}, nil
	}

	id, ok := strings.CutPrefix(opt.Payload, "item:")
	if !ok {
		return nil, fmt.Errorf("%w: payload %q", ErrInvalidOption, opt.Payload)
	}
	item, err := b.catalog.Get(ctx, t.Conv.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s", ErrInvalidOption, id)
	}

	t.Conv.Reset()
	text := fmt.Sprintf("%s is %.2f %s.", item.Name, item.Price, item.Currency)
	if item.Description != "" {
		text += " " + item.Description
	}
	text += " Would you like to order it?"
	return &Reply{Text: text, Facts: itemFacts([]catalog.Item{*item})}, nil
}

func (b *Browse) Resume(ctx context.Context, t *Turn) (*Reply, bool, error) {
	return nil, false, nil
}

// itemMenu turns catalog items into selectable options. Product selections
// route to checkout, service selections to booking.
func itemMenu(items []catalog.Item) []conversation.MenuOption {
	opts := make([]conversation.MenuOption, len(items))
	for i, item := range items {
		flow := FlowCheckout
		if item.Kind == catalog.KindService {
			flow = FlowBooking
		}
		opts[i] = conversation.MenuOption{
			Label:   fmt.Sprintf("%s — %.2f %s", item.Name, item.Price, item.Currency),
			Payload: "item:" + item.ID,
			Flow:    flow,
		}
	}
	return opts
}

// itemFacts exposes the listed items for source attribution.
func itemFacts(items []catalog.Item) []grounding.SourceFact {
	facts := make([]grounding.SourceFact, len(items))
	for i, item := range items {
		facts[i] = grounding.SourceFact{
			Source:    grounding.SourceCatalog,
			Title:     item.Name,
			Excerpt:   fmt.Sprintf("%.2f %s", item.Price, item.Currency),
			Relevance: 1,
			Origin:    "catalog:" + item.ID,
		}
	}
	return facts
}
