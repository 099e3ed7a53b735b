// Package engine is the per-turn orchestrator: it owns the conversation
// state machine algorithm, decides deterministic vs reasoning handling, and
// wires the extractor, grounding, routing, failover, and assembly stages
// together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ziadkadry99/shoptalk/internal/assemble"
	"github.com/ziadkadry99/shoptalk/internal/catalog"
	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/flows"
	"github.com/ziadkadry99/shoptalk/internal/gateway"
	"github.com/ziadkadry99/shoptalk/internal/grounding"
	"github.com/ziadkadry99/shoptalk/internal/intent"
	"github.com/ziadkadry99/shoptalk/internal/llm"
	"github.com/ziadkadry99/shoptalk/internal/payments"
	"github.com/ziadkadry99/shoptalk/internal/routing"
	"github.com/ziadkadry99/shoptalk/internal/tenant"
	"github.com/ziadkadry99/shoptalk/internal/usage"
)

// TenantSource resolves tenant snapshots. The tenant cache implements it.
type TenantSource interface {
	Get(ctx context.Context, tenantID string) (*tenant.Snapshot, error)
}

// Deps are the engine's collaborators.
type Deps struct {
	Store     *conversation.Store
	Ledger    *conversation.Ledger
	Tenants   TenantSource
	Extractor intent.Extractor
	Grounding *grounding.Engine
	Scorer    *routing.Scorer
	Router    *routing.Router
	Client    *llm.FailoverClient
	Catalog   catalog.Lookup
	Orders    *flows.OrderStore
	Bookings  *flows.BookingStore
	Payments  payments.Gateway
	Usage     *usage.Store
	Events    EventSink
	Logger    *slog.Logger
}

// Engine processes inbound messages. It implements gateway.TurnHandler and
// gateway.PaymentHandler.
type Engine struct {
	store     *conversation.Store
	locks     *conversation.Locks
	ledger    *conversation.Ledger
	tenants   TenantSource
	extractor intent.Extractor
	grounding *grounding.Engine
	scorer    *routing.Scorer
	router    *routing.Router
	client    *llm.FailoverClient
	flows     *flows.Registry
	usage     *usage.Store
	events    EventSink
	logger    *slog.Logger
}

// New wires an engine and its flow registry.
func New(deps Deps) *Engine {
	if deps.Events == nil {
		deps.Events = NopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := &Engine{
		store:     deps.Store,
		locks:     conversation.NewLocks(),
		ledger:    deps.Ledger,
		tenants:   deps.Tenants,
		extractor: deps.Extractor,
		grounding: deps.Grounding,
		scorer:    deps.Scorer,
		router:    deps.Router,
		client:    deps.Client,
		usage:     deps.Usage,
		events:    deps.Events,
		logger:    deps.Logger.With("component", "engine"),
	}
	e.flows = flows.NewRegistry(flows.Deps{
		Catalog:  deps.Catalog,
		Orders:   deps.Orders,
		Bookings: deps.Bookings,
		Payments: deps.Payments,
		Reason:   e.reason,
		Logger:   deps.Logger,
	})
	return e
}

// statsKey carries per-turn reasoning telemetry from reason back to the
// turn event without threading it through every handler.
type statsKey struct{}

type turnStats struct {
	provider   string
	model      string
	tier       string
	complexity float64
	cost       float64
}

// HandleTurn runs the per-turn state machine algorithm for one inbound
// message. Turns for the same conversation are strictly serialized; a
// duplicate message id replays the recorded reply without side effects.
func (e *Engine) HandleTurn(ctx context.Context, msg gateway.InboundMessage) (gateway.OutboundMessage, error) {
	release := e.locks.Acquire(msg.ConversationID)
	defer release()

	started := time.Now()
	log := e.logger.With("conversation", msg.ConversationID, "tenant", msg.TenantID)

	if recorded, seen, err := e.ledger.Seen(ctx, msg.MessageID); err != nil {
		return gateway.OutboundMessage{}, err
	} else if seen {
		log.Info("duplicate message replayed", "message", msg.MessageID)
		e.events.Emit(TurnEvent{
			ConversationID: msg.ConversationID, TenantID: msg.TenantID,
			Path: PathReplay, LatencyMillis: time.Since(started).Milliseconds(), At: time.Now().UTC(),
		})
		return gateway.OutboundMessage{ConversationID: msg.ConversationID, Text: recorded}, nil
	}

	conv, err := e.store.GetOrCreate(ctx, msg.ConversationID, msg.TenantID, msg.CustomerID)
	if err != nil {
		return gateway.OutboundMessage{}, err
	}
	snap := e.snapshot(ctx, msg.TenantID)

	// A handed-off conversation gets no automated replies until cleared.
	if conv.State == conversation.StateAwaitingHandoff {
		if err := e.finishTurn(ctx, conv, msg.MessageID, ""); err != nil {
			return gateway.OutboundMessage{}, err
		}
		e.events.Emit(TurnEvent{
			ConversationID: conv.ID, TenantID: conv.TenantID,
			Path: PathHandoff, LatencyMillis: time.Since(started).Milliseconds(), At: time.Now().UTC(),
		})
		return gateway.OutboundMessage{ConversationID: conv.ID}, nil
	}

	stats := &turnStats{}
	ctx = context.WithValue(ctx, statsKey{}, stats)
	turn := &flows.Turn{Conv: conv, Snap: snap, Text: msg.Text}

	reply, path, err := e.resolve(ctx, turn, msg, log)
	if err != nil {
		var corruption *StateCorruptionError
		if errors.As(err, &corruption) {
			log.Error("state corruption, resetting conversation", "error", corruption)
			conv.Reset()
			reply = &flows.Reply{Text: corruptedReply}
			path = PathDeterministic
		} else {
			return gateway.OutboundMessage{}, err
		}
	}

	final := assemble.Finalize(assemble.Input{
		Draft:    reply.Text,
		Snap:     snap,
		Facts:    reply.Facts,
		Grounded: reply.Grounded,
	})

	// Cancellation: the work completed, but a dead conversation's writes
	// are discarded rather than persisted.
	if ctx.Err() != nil {
		log.Info("turn discarded, context cancelled")
		return gateway.OutboundMessage{}, ctx.Err()
	}

	if err := e.finishTurn(ctx, conv, msg.MessageID, final); err != nil {
		return gateway.OutboundMessage{}, err
	}

	e.events.Emit(TurnEvent{
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		Path:           path,
		Intent:         turnIntent(turn),
		Provider:       stats.provider,
		Model:          stats.model,
		Tier:           stats.tier,
		Complexity:     stats.complexity,
		LatencyMillis:  time.Since(started).Milliseconds(),
		CostUSD:        stats.cost,
		At:             time.Now().UTC(),
	})

	return gateway.OutboundMessage{
		ConversationID:     conv.ID,
		Text:               final,
		InteractiveOptions: interactiveOptions(conv.Menu),
	}, nil
}

// resolve applies the per-turn algorithm: menu match, then the active
// flow's deterministic matcher, then extraction and flow dispatch. A
// deterministic match always wins over an extractable intent.
func (e *Engine) resolve(ctx context.Context, t *flows.Turn, msg gateway.InboundMessage, log *slog.Logger) (*flows.Reply, Path, error) {
	conv := t.Conv

	if opt := conversation.MatchMenu(conv.Menu, msg.Text); opt != nil {
		handler, ok := e.flows.ByName(opt.Flow)
		if !ok {
			return nil, "", &StateCorruptionError{ConversationID: conv.ID,
				Reason: fmt.Sprintf("menu option bound to unknown flow %q", opt.Flow)}
		}
		conv.Menu = nil
		conv.LowConfidence = 0
		reply, err := handler.Option(ctx, t, *opt)
		if err != nil {
			if errors.Is(err, flows.ErrInvalidOption) {
				return nil, "", &StateCorruptionError{ConversationID: conv.ID, Reason: err.Error()}
			}
			return nil, "", err
		}
		return reply, PathDeterministic, nil
	}

	if conv.Flow != "" &&
		(conv.State == conversation.StateInFlow || conv.State == conversation.StateAwaitingSlot) {
		handler, ok := e.flows.ByName(conv.Flow)
		if !ok {
			return nil, "", &StateCorruptionError{ConversationID: conv.ID,
				Reason: fmt.Sprintf("unknown active flow %q", conv.Flow)}
		}
		reply, handled, err := handler.Resume(ctx, t)
		if err != nil {
			return nil, "", err
		}
		if handled {
			conv.LowConfidence = 0
			return reply, PathDeterministic, nil
		}
	}

	return e.reasonedTurn(ctx, t, msg, log)
}

// reasonedTurn is the non-deterministic path: extract the intent, apply the
// handoff and confidence gates, ground, and dispatch the flow handler.
func (e *Engine) reasonedTurn(ctx context.Context, t *flows.Turn, msg gateway.InboundMessage, log *slog.Logger) (*flows.Reply, Path, error) {
	conv, snap := t.Conv, t.Snap

	result, err := e.extractor.Extract(ctx, intent.Input{Text: msg.Text, Summary: turnSummary(conv)})
	if err != nil {
		// Extractor failure is a sub-threshold result, never an aborted turn.
		log.Warn("extraction failed, treating as low confidence", "error", err)
		result = &intent.Result{Intent: intent.IntentOther, Confidence: 0, Slots: map[string]string{}}
	}
	t.Intent = result
	log.Info("intent extracted", "intent", string(result.Intent), "confidence", result.Confidence)

	if autoHandoff(snap, result.Intent) {
		return e.toHandoff(ctx, t)
	}

	if result.Confidence < snap.ConfidenceThreshold {
		conv.LowConfidence++
		if conv.LowConfidence > snap.MaxLowConfidenceTurns {
			return e.toHandoff(ctx, t)
		}
		return &flows.Reply{Text: clarifyReply}, PathModel, nil
	}
	conv.LowConfidence = 0

	if grounding.Required(result.Intent) {
		t.Grounding = e.grounding.Fetch(ctx, grounding.Query{
			TenantID: conv.TenantID,
			Intent:   result.Intent,
			Slots:    result.Slots,
			Text:     msg.Text,
			Summary:  turnSummary(conv),
		}, snap)
	}

	handler, ok := e.flows.ForIntent(result.Intent)
	if !ok {
		handler, _ = e.flows.ByName(flows.FlowSmalltalk)
	}
	reply, err := handler.Start(ctx, t)
	if err != nil {
		var exhausted *llm.ProviderExhaustedError
		if errors.As(err, &exhausted) {
			log.Error("provider candidates exhausted", "attempts", len(exhausted.Attempts), "error", err)
			conv.Handoff()
			return &flows.Reply{Text: exhaustedReply}, PathHandoff, nil
		}
		if errors.Is(err, flows.ErrInvalidOption) {
			return nil, "", &StateCorruptionError{ConversationID: conv.ID, Reason: err.Error()}
		}
		return nil, "", err
	}

	path := PathModel
	if conv.State == conversation.StateAwaitingHandoff {
		path = PathHandoff
	}
	return reply, path, nil
}

func (e *Engine) toHandoff(ctx context.Context, t *flows.Turn) (*flows.Reply, Path, error) {
	handler, _ := e.flows.ByName(flows.FlowHandoff)
	reply, err := handler.Start(ctx, t)
	if err != nil {
		return nil, "", err
	}
	return reply, PathHandoff, nil
}

// finishTurn persists state and records the idempotency outcome.
func (e *Engine) finishTurn(ctx context.Context, conv *conversation.Conversation, messageID, reply string) error {
	conv.Touch(time.Now().UTC())
	if err := e.store.Save(ctx, conv); err != nil {
		return fmt.Errorf("persisting conversation: %w", err)
	}
	if err := e.ledger.Record(ctx, messageID, conv.ID, reply); err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

// HandlePaymentResult consumes a payment callback: it settles the order,
// clears the checkout flow, and returns the customer notification.
func (e *Engine) HandlePaymentResult(ctx context.Context, res payments.Result) (gateway.OutboundMessage, error) {
	outcome, err := e.flows.PaymentResult(ctx, res)
	if err != nil {
		return gateway.OutboundMessage{}, err
	}

	release := e.locks.Acquire(outcome.ConversationID)
	defer release()

	conv, err := e.store.Get(ctx, outcome.ConversationID)
	if err != nil {
		return gateway.OutboundMessage{}, err
	}
	if conv.Flow == flows.FlowCheckout && conv.Step == "awaiting_payment" {
		conv.Reset()
		conv.Touch(time.Now().UTC())
		if err := e.store.Save(ctx, conv); err != nil {
			return gateway.OutboundMessage{}, err
		}
	}

	e.logger.Info("payment result applied",
		"conversation", outcome.ConversationID, "tenant", outcome.TenantID, "paid", outcome.Paid)
	return gateway.OutboundMessage{ConversationID: outcome.ConversationID, Text: outcome.Text}, nil
}

// ClearHandoff returns a handed-off conversation to automated handling.
func (e *Engine) ClearHandoff(ctx context.Context, conversationID string) error {
	release := e.locks.Acquire(conversationID)
	defer release()

	conv, err := e.store.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	conv.ClearHandoff()
	conv.Touch(time.Now().UTC())
	return e.store.Save(ctx, conv)
}

// reason runs the scorer, router, failover client, and usage recording for
// one model-drafted reply. Supplied to flow handlers as their ReasonFunc.
func (e *Engine) reason(ctx context.Context, req flows.ReasonRequest) (string, error) {
	system := assemble.PersonaPreamble(req.Snap) + "\n\n" + req.System
	contextTokens := llm.EstimateTokens(system)

	depth, err := e.ledger.CountForConversation(ctx, req.Conv.ID)
	if err != nil {
		depth = 0
	}

	score := e.scorer.Score(routing.TurnSignals{
		Text:              req.Prompt,
		ConversationDepth: depth,
		ContextTokens:     contextTokens,
	})
	decision := e.router.Decide(score, contextTokens, req.Snap)
	e.logger.Info("routing decision",
		"conversation", req.Conv.ID, "tenant", req.Conv.TenantID,
		"primary", decision.Primary.Key(), "tier", string(decision.Tier),
		"complexity", decision.Complexity, "reason", decision.Reason)

	res, err := e.client.Complete(ctx, decision.Candidates(), llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: req.Prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}

	cost := llm.EstimateCost(res.Response.Model, res.Response.InputTokens, res.Response.OutputTokens)
	if stats, ok := ctx.Value(statsKey{}).(*turnStats); ok {
		stats.provider = res.Ref.Provider
		stats.model = res.Ref.Model
		stats.tier = string(decision.Tier)
		stats.complexity = decision.Complexity
		stats.cost = cost
	}

	record := usage.Record{
		TenantID:       req.Conv.TenantID,
		ConversationID: req.Conv.ID,
		Provider:       res.Ref.Provider,
		Model:          res.Ref.Model,
		InputTokens:    res.Response.InputTokens,
		OutputTokens:   res.Response.OutputTokens,
		CostUSD:        cost,
		LatencyMillis:  res.Latency.Milliseconds(),
		Success:        true,
	}
	if err := e.usage.Write(ctx, record); err != nil {
		e.logger.Warn("usage record write failed", "conversation", req.Conv.ID, "error", err)
	}

	return strings.TrimSpace(res.Response.Content), nil
}

// snapshot resolves the tenant configuration, falling back to defaults for
// unknown tenants so a misconfigured channel still gets sane behavior.
func (e *Engine) snapshot(ctx context.Context, tenantID string) *tenant.Snapshot {
	snap, err := e.tenants.Get(ctx, tenantID)
	if err != nil {
		e.logger.Info("tenant snapshot unavailable, using defaults", "tenant", tenantID, "error", err)
		return tenant.Defaults(tenantID)
	}
	return snap
}

func autoHandoff(snap *tenant.Snapshot, it intent.Intent) bool {
	for _, topic := range snap.AutoHandoffTopics {
		if strings.EqualFold(topic, string(it)) {
			return true
		}
	}
	return false
}

// turnSummary compactly describes the conversation position for the
// extractor prompt.
func turnSummary(c *conversation.Conversation) string {
	var parts []string
	if c.Flow != "" {
		parts = append(parts, fmt.Sprintf("customer is in the %s flow at step %s", c.Flow, c.Step))
	}
	if c.AwaitingSlot != "" {
		parts = append(parts, fmt.Sprintf("waiting for a %s value", c.AwaitingSlot))
	}
	if len(c.Menu) > 0 {
		parts = append(parts, "a menu was presented:\n"+conversation.RenderMenu(c.Menu))
	}
	if len(c.Metadata) > 0 {
		keys := make([]string, 0, len(c.Metadata))
		for k := range c.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, k+"="+c.Metadata[k])
		}
		parts = append(parts, "collected so far: "+strings.Join(kv, ", "))
	}
	return strings.Join(parts, ". ")
}

func turnIntent(t *flows.Turn) string {
	if t.Intent == nil {
		return ""
	}
	return string(t.Intent.Intent)
}

func interactiveOptions(menu []conversation.MenuOption) []gateway.InteractiveOption {
	if len(menu) == 0 {
		return nil
	}
	out := make([]gateway.InteractiveOption, len(menu))
	for i, opt := range menu {
		out[i] = gateway.InteractiveOption{Label: opt.Label, Payload: opt.Payload}
	}
	return out
}
