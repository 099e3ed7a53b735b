// Package flows contains the business-flow handlers the state machine
// dispatches to: catalog browse, appointment booking, order checkout, FAQ,
// payment help, and human handoff. Handlers mutate conversation state
// directly and return a draft reply; persistence and assembly happen in the
// engine.
package flows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/grounding"
	"github.com/ziadkadry99/shoptalk/internal/intent"
	"github.com/ziadkadry99/shoptalk/internal/payments"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
)

// ErrInvalidOption signals a menu payload that does not fit the flow's
// state, e.g. a stored menu referencing an option the flow cannot resolve.
// The engine treats it as state corruption and resets the conversation.
var ErrInvalidOption = errors.New("menu option does not match flow state")

// Turn is everything a handler may consult for one inbound message.
type Turn struct {
	Conv      *conversation.Conversation
	Snap      *tenant.Snapshot
	Text      string
	Intent    *intent.Result
	Grounding *grounding.Context
}

// slot returns an extracted slot value, empty when absent.
func (t *Turn) slot(name string) string {
	if t.Intent == nil {
		return ""
	}
	return t.Intent.Slots[name]
}

// Reply is a handler's draft outcome, before persona and attribution are
// applied by the assembler.
type Reply struct {
	Text     string
	Facts    []grounding.SourceFact
	Grounded bool
}

// ReasonRequest asks the reasoning pipeline (scorer, router, failover
// client) for a model-drafted reply constrained to the grounded facts.
type ReasonRequest struct {
	Conv      *conversation.Conversation
	Snap      *tenant.Snapshot
	System    string
	Prompt    string
	Grounding *grounding.Context
}

// ReasonFunc is supplied by the engine. It returns the model draft or a
// typed error (llm.ProviderExhaustedError when every candidate failed).
type ReasonFunc func(ctx context.Context, req ReasonRequest) (string, error)

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Catalog  catalog.Lookup
	Orders   *OrderStore
	Bookings *BookingStore
	Payments payments.Gateway
	Reason   ReasonFunc
	Logger   *slog.Logger
}

// Handler is one business flow. Start handles a fresh intent dispatch,
// Option handles a menu selection bound to this flow, and Resume handles a
// turn while the flow is active. Resume returns handled=false when the
// input has no deterministic match and must go through the extractor.
type Handler interface {
	Name() string
	Start(ctx context.Context, t *Turn) (*Reply, error)
	Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error)
	Resume(ctx context.Context, t *Turn) (*Reply, bool, error)
}

// Registry holds the flow handlers by name and intent.
type Registry struct {
	byName   map[string]Handler
	checkout *Checkout
}

// NewRegistry wires all flow handlers over the shared dependencies.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "flows")

	checkout := NewCheckout(deps)
	handlers := []Handler{
		NewBrowse(deps),
		NewBooking(deps),
		checkout,
		NewFAQ(deps),
		NewPaymentHelp(deps),
		NewHandoff(deps),
		NewSmalltalk(deps),
	}

	byName := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byName[h.Name()] = h
	}
	return &Registry{byName: byName, checkout: checkout}
}

// ByName returns the handler owning a flow name.
func (r *Registry) ByName(name string) (Handler, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// ForIntent maps a classified intent to its flow handler.
func (r *Registry) ForIntent(it intent.Intent) (Handler, bool) {
	switch it {
	case intent.IntentBrowse:
		return r.byName[FlowBrowse], true
	case intent.IntentBook:
		return r.byName[FlowBooking], true
	case intent.IntentOrder:
		return r.byName[FlowCheckout], true
	case intent.IntentFAQ:
		return r.byName[FlowFAQ], true
	case intent.IntentPaymentHelp:
		return r.byName[FlowPaymentHelp], true
	case intent.IntentHandoff:
		return r.byName[FlowHandoff], true
	case intent.IntentGreeting, intent.IntentOther:
		return r.byName[FlowSmalltalk], true
	}
	return nil, false
}

// PaymentResult routes an asynchronous payment callback to the checkout
// flow and returns the conversation to notify plus the customer message.
func (r *Registry) PaymentResult(ctx context.Context, res payments.Result) (*PaymentOutcome, error) {
	return r.checkout.HandlePaymentResult(ctx, res)
}

// Flow names. MenuOption.Flow values must be one of these.
const (
	FlowBrowse      = "browse"
	FlowBooking     = "booking"
	FlowCheckout    = "checkout"
	FlowFAQ         = "faq"
	FlowPaymentHelp = "payment_help"
	FlowHandoff     = "handoff"
	FlowSmalltalk   = "smalltalk"
)

// TopMenu is the entry menu offered on greetings and unclassifiable turns.
func TopMenu() []conversation.MenuOption {
	return []conversation.MenuOption{
		{Label: "Browse products", Payload: "menu:browse", Flow: FlowBrowse},
		{Label: "Book an appointment", Payload: "menu:book", Flow: FlowBooking},
		{Label: "Talk to a human", Payload: "menu:handoff", Flow: FlowHandoff},
	}
}

// dontKnowReply is the mandatory answer when a grounding-required question
// has no retrieved facts. The model never answers ungrounded.
const dontKnowReply = "I don't have that information. Would you like me to connect you with a member of our team?"
