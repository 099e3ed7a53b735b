package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
)

// PaymentHelp answers payment questions. A conversation with an order in
// flight gets a deterministic status answer; general payment questions are
// grounded like FAQ.
type PaymentHelp struct {
	orders *OrderStore
	reason ReasonFunc
	logger *slog.Logger
}

func NewPaymentHelp(deps Deps) *PaymentHelp {
	return &PaymentHelp{orders: deps.Orders, reason: deps.Reason, logger: deps.Logger}
}

func (p *PaymentHelp) Name() string { return FlowPaymentHelp }

func (p *PaymentHelp) Start(ctx context.Context, t *Turn) (*Reply, error) {
	order, err := p.orders.LatestForConversation(ctx, t.Conv.ID)
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, fmt.Errorf("looking up order: %w", err)
	}
	if order != nil {
		switch order.Status {
		case OrderAwaitingPayment:
			return &Reply{Text: fmt.Sprintf(
				"Your order for %.2f %s is waiting on payment (ref %s). The payment link I sent earlier is still valid.",
				order.Amount, order.Currency, order.PaymentRef)}, nil
		case OrderPaid:
			return &Reply{Text: fmt.Sprintf("Your payment went through and order %s is confirmed.", order.ID)}, nil
		case OrderFailed:
			return &Reply{Text: "Your last payment didn't go through. Say \"order\" to start again."}, nil
		}
	}

	if t.Grounding.Empty() {
		return &Reply{Text: dontKnowReply}, nil
	}
	draft, err := p.reason(ctx, ReasonRequest{
		Conv:      t.Conv,
		Snap:      t.Snap,
		System:    faqSystemPrompt + "\n\nFacts:\n" + t.Grounding.Summary,
		Prompt:    t.Text,
		Grounding: t.Grounding,
	})
	if err != nil {
		return nil, err
	}
	return &Reply{Text: draft, Facts: t.Grounding.Facts, Grounded: true}, nil
}

func (p *PaymentHelp) Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error) {
	return nil, ErrInvalidOption
}

func (p *PaymentHelp) Resume(ctx context.Context, t *Turn) (*Reply, bool, error) {
	return nil, false, nil
}
