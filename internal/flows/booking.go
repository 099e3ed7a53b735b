package flows

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/conversation"
)

// Booking walks a customer through booking a service: pick the service,
// then a date, then a time, then confirm. Every step after the service pick
// is matched deterministically; the extractor only sees free-form turns.
type Booking struct {
	catalog  catalog.Lookup
	bookings *BookingStore
	logger   *slog.Logger
}

func NewBooking(deps Deps) *Booking {
	return &Booking{catalog: deps.Catalog, bookings: deps.Bookings, logger: deps.Logger}
}

func (b *Booking) Name() string { return FlowBooking }

func (b *Booking) Start(ctx context.Context, t *Turn) (*Reply, error) {
	// Extracted slots may pre-fill any of service, date, and time.
	if v := t.slot("date"); v != "" {
		if normalized, ok := conversation.ValidateSlot("date", v); ok {
			t.Conv.Metadata["booking_date"] = normalized
		}
	}
	if v := t.slot("time"); v != "" {
		if normalized, ok := conversation.ValidateSlot("time", v); ok {
			t.Conv.Metadata["booking_time"] = normalized
		}
	}

	if name := t.slot("service"); name != "" {
		items, err := b.catalog.Search(ctx, t.Conv.TenantID, name, 3)
		if err != nil {
			return nil, fmt.Errorf("searching services: %w", err)
		}
		services := keepServices(items)
		if len(services) == 1 {
			return b.serviceChosen(ctx, t, services[0])
		}
	}

	services, err := b.catalog.ListByKind(ctx, t.Conv.TenantID, catalog.KindService, t.Snap.CatalogResults)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	if len(services) == 0 {
		t.Conv.Reset()
		return &Reply{Text: "There's nothing bookable right now. Can I help with anything else?"}, nil
	}

	t.Conv.Flow = FlowBooking
	t.Conv.PresentMenu(itemMenu(services))
	return &Reply{
		Text:  "What would you like to book? Reply with a number:\n" + conversation.RenderMenu(t.Conv.Menu),
		Facts: itemFacts(services),
	}, nil
}

func (b *Booking) Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error) {
	if opt.Payload == "menu:book" {
		return b.Start(ctx, t)
	}

	id, ok := strings.CutPrefix(opt.Payload, "item:")
	if !ok {
		return nil, fmt.Errorf("%w: payload %q", ErrInvalidOption, opt.Payload)
	}
	item, err := b.catalog.Get(ctx, t.Conv.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("%w: service %s", ErrInvalidOption, id)
	}
	return b.serviceChosen(ctx, t, *item)
}

func (b *Booking) serviceChosen(ctx context.Context, t *Turn, item catalog.Item) (*Reply, error) {
	t.Conv.Metadata["service_id"] = item.ID
	t.Conv.Metadata["service_name"] = item.Name
	return b.advance(ctx, t)
}

// advance asks for the next missing piece, or confirms when everything is
// collected.
func (b *Booking) advance(ctx context.Context, t *Turn) (*Reply, error) {
	meta := t.Conv.Metadata
	switch {
	case meta["booking_date"] == "":
		t.Conv.AwaitSlot(FlowBooking, "pick_date", "date")
		return &Reply{Text: fmt.Sprintf("What date works for your %s? (for example 2026-09-04)", meta["service_name"])}, nil
	case meta["booking_time"] == "":
		t.Conv.AwaitSlot(FlowBooking, "pick_time", "time")
		return &Reply{Text: "And what time? (for example 14:30)"}, nil
	default:
		t.Conv.EnterFlow(FlowBooking, "confirm")
		return &Reply{Text: fmt.Sprintf("Booking %s on %s at %s. Shall I confirm? (yes/no)",
			meta["service_name"], meta["booking_date"], meta["booking_time"])}, nil
	}
}

func (b *Booking) Resume(ctx context.Context, t *Turn) (*Reply, bool, error) {
	conv := t.Conv
	if conv.State == conversation.StateAwaitingSlot {
		value, ok := conversation.ValidateSlot(conv.AwaitingSlot, t.Text)
		if !ok {
			return nil, false, nil
		}
		switch conv.AwaitingSlot {
		case "date":
			conv.Metadata["booking_date"] = value
		case "time":
			conv.Metadata["booking_time"] = value
		}
		reply, err := b.advance(ctx, t)
		return reply, err == nil, err
	}

	if conv.Step == "confirm" {
		yes, matched := conversation.MatchYesNo(t.Text)
		if !matched {
			return nil, false, nil
		}
		if !yes {
			conv.Reset()
			return &Reply{Text: "No problem, I've cancelled that. Anything else?"}, true, nil
		}

		rec := &BookingRecord{
			TenantID:       conv.TenantID,
			ConversationID: conv.ID,
			ServiceID:      conv.Metadata["service_id"],
			ServiceName:    conv.Metadata["service_name"],
			Date:           conv.Metadata["booking_date"],
			Time:           conv.Metadata["booking_time"],
		}
		if err := b.bookings.Create(ctx, rec); err != nil {
			return nil, true, fmt.Errorf("confirming booking: %w", err)
		}
		text := fmt.Sprintf("You're booked: %s on %s at %s. See you then!",
			rec.ServiceName, rec.Date, rec.Time)
		conv.Reset()
		return &Reply{Text: text}, true, nil
	}

	return nil, false, nil
}
