package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/payments"
)

// Checkout takes an order: pick the product, ask the quantity, confirm the
// total, then hand off to the payment gateway and wait for the asynchronous
// payment result. Duplicate payment callbacks are safe; the order status
// transition happens once.
type Checkout struct {
	catalog  catalog.Lookup
	orders   *OrderStore
	payments payments.Gateway
	logger   *slog.Logger
}

func NewCheckout(deps Deps) *Checkout {
	return &Checkout{
		catalog:  deps.Catalog,
		orders:   deps.Orders,
		payments: deps.Payments,
		logger:   deps.Logger,
	}
}

func (c *Checkout) Name() string { return FlowCheckout }

func (c *Checkout) Start(ctx context.Context, t *Turn) (*Reply, error) {
	query := t.slot("product")
	if query == "" {
		query = t.Text
	}
	items, err := c.catalog.Search(ctx, t.Conv.TenantID, query, t.Snap.CatalogResults)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	products := keepProducts(items)

	switch len(products) {
	case 0:
		t.Conv.Reset()
		return &Reply{Text: "I couldn't find that product. Try \"browse\" to see what's available."}, nil
	case 1:
		return c.productChosen(t, products[0])
	default:
		t.Conv.Flow = FlowCheckout
		t.Conv.PresentMenu(itemMenu(products))
		return &Reply{
			Text:  "Which one did you mean? Reply with a number:\n" + conversation.RenderMenu(t.Conv.Menu),
			Facts: itemFacts(products),
		}, nil
	}
}

func (c *Checkout) Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error) {
	id, ok := strings.CutPrefix(opt.Payload, "item:")
	if !ok {
		return nil, fmt.Errorf("%w: payload %q", ErrInvalidOption, opt.Payload)
	}
	item, err := c.catalog.Get(ctx, t.Conv.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s", ErrInvalidOption, id)
	}
	return c.productChosen(t, *item)
}

func (c *Checkout) productChosen(t *Turn, item catalog.Item) (*Reply, error) {
	delete(t.Conv.Metadata, "order_id")
	t.Conv.Metadata["item_id"] = item.ID
	t.Conv.Metadata["item_name"] = item.Name
	t.Conv.Metadata["item_price"] = fmt.Sprintf("%.2f", item.Price)
	t.Conv.Metadata["item_currency"] = item.Currency

	if qty := t.slot("quantity"); qty != "" {
		if v, ok := conversation.ValidateSlot("quantity", qty); ok {
			t.Conv.Metadata["quantity"] = v
			return c.confirmTotal(t)
		}
	}

	t.Conv.AwaitSlot(FlowCheckout, "pick_quantity", "quantity")
	return &Reply{Text: fmt.Sprintf("How many of %s would you like? (%.2f %s each)",
		item.Name, item.Price, item.Currency)}, nil
}

func (c *Checkout) confirmTotal(t *Turn) (*Reply, error) {
	meta := t.Conv.Metadata
	qty, _ := strconv.Atoi(meta["quantity"])
	price, _ := strconv.ParseFloat(meta["item_price"], 64)
	total := float64(qty) * price
	meta["total"] = fmt.Sprintf("%.2f", total)

	t.Conv.EnterFlow(FlowCheckout, "confirm")
	return &Reply{Text: fmt.Sprintf("%d × %s comes to %.2f %s. Shall I set up the payment? (yes/no)",
		qty, meta["item_name"], total, meta["item_currency"])}, nil
}

func (c *Checkout) Resume(ctx context.Context, t *Turn) (*Reply, bool, error) {
	conv := t.Conv
	if conv.State == conversation.StateAwaitingSlot && conv.AwaitingSlot == "quantity" {
		value, ok := conversation.ValidateSlot("quantity", t.Text)
		if !ok {
			return nil, false, nil
		}
		conv.Metadata["quantity"] = value
		reply, err := c.confirmTotal(t)
		return reply, err == nil, err
	}

	if conv.Step == "confirm" {
		yes, matched := conversation.MatchYesNo(t.Text)
		if !matched {
			return nil, false, nil
		}
		if !yes {
			conv.Reset()
			return &Reply{Text: "Order cancelled. Anything else I can help with?"}, true, nil
		}
		reply, err := c.initiatePayment(ctx, t)
		return reply, true, err
	}

	return nil, false, nil
}

func (c *Checkout) initiatePayment(ctx context.Context, t *Turn) (*Reply, error) {
	order, err := c.pendingOrder(ctx, t)
	if err != nil {
		return nil, err
	}

	checkout, err := c.payments.InitiateCheckout(ctx, t.Conv.TenantID, order.ID, order.Amount, order.Currency)
	if err != nil {
		// Keep the confirm step so the customer can retry with another yes.
		c.logger.Warn("checkout initiation failed",
			"tenant", t.Conv.TenantID, "conversation", t.Conv.ID, "order", order.ID, "error", err)
		return &Reply{Text: "I'm having trouble reaching the payment provider. Give me a moment and say \"yes\" to try again."}, nil
	}
	if err := c.orders.SetPaymentRef(ctx, order.ID, checkout.Reference); err != nil {
		return nil, fmt.Errorf("recording payment reference: %w", err)
	}

	t.Conv.EnterFlow(FlowCheckout, "awaiting_payment")
	t.Conv.AwaitingResponse = false
	return &Reply{Text: checkout.Prompt + "\nI'll confirm here as soon as the payment goes through."}, nil
}

// pendingOrder returns the order for this checkout, creating it on the first
// attempt. A retry after a gateway failure reuses the order stashed in the
// conversation metadata instead of inserting another pending row.
func (c *Checkout) pendingOrder(ctx context.Context, t *Turn) (*Order, error) {
	meta := t.Conv.Metadata
	if id := meta["order_id"]; id != "" {
		order, err := c.orders.Get(ctx, id)
		if err == nil && order.Status == OrderPending {
			return order, nil
		}
		if err != nil && !errors.Is(err, ErrOrderNotFound) {
			return nil, fmt.Errorf("loading order %s: %w", id, err)
		}
	}

	qty, _ := strconv.Atoi(meta["quantity"])
	total, _ := strconv.ParseFloat(meta["total"], 64)
	order := &Order{
		TenantID:       t.Conv.TenantID,
		ConversationID: t.Conv.ID,
		ItemID:         meta["item_id"],
		Quantity:       qty,
		Amount:         total,
		Currency:       meta["item_currency"],
	}
	if err := c.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	meta["order_id"] = order.ID
	return order, nil
}

// PaymentOutcome is what a resolved payment callback produces: the
// conversation to notify and the message to send.
type PaymentOutcome struct {
	ConversationID string
	TenantID       string
	Text           string
	Paid           bool
}

// HandlePaymentResult consumes the asynchronous payment_result callback.
func (c *Checkout) HandlePaymentResult(ctx context.Context, res payments.Result) (*PaymentOutcome, error) {
	status := OrderFailed
	if res.Status == payments.StatusPaid {
		status = OrderPaid
	}
	order, err := c.orders.ResolvePayment(ctx, res.Reference, status)
	if err != nil {
		return nil, fmt.Errorf("resolving payment %s: %w", res.Reference, err)
	}

	out := &PaymentOutcome{
		ConversationID: order.ConversationID,
		TenantID:       order.TenantID,
		Paid:           status == OrderPaid,
	}
	if out.Paid {
		out.Text = fmt.Sprintf("Payment received, thank you! Your order is confirmed (ref %s).", order.ID)
	} else {
		out.Text = "That payment didn't go through. Say \"order\" if you'd like to try again."
	}
	return out, nil
}

func keepProducts(items []catalog.Item) []catalog.Item {
	var out []catalog.Item
	for _, item := range items {
		if item.Kind == catalog.KindProduct {
			out = append(out, item)
		}
	}
	return out
}

func keepServices(items []catalog.Item) []catalog.Item {
	var out []catalog.Item
	for _, item := range items {
		if item.Kind == catalog.KindService {
			out = append(out, item)
		}
	}
	return out
}
