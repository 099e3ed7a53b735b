package engine

import "time"

// Path records how a turn was resolved.
type Path string

const (
	PathDeterministic Path = "deterministic"
	PathModel         Path = "model"
	PathHandoff       Path = "handoff"
	PathReplay        Path = "replay"
)

// TurnEvent is the ops-stream record emitted after every processed turn.
type TurnEvent struct {
	ConversationID string    `json:"conversation_id"`
	TenantID       string    `json:"tenant_id"`
	Path           Path      `json:"path"`
	Intent         string    `json:"intent,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	Tier           string    `json:"tier,omitempty"`
	Complexity     float64   `json:"complexity,omitempty"`
	LatencyMillis  int64     `json:"latency_ms"`
	CostUSD        float64   `json:"cost_usd,omitempty"`
	At             time.Time `json:"at"`
}

// EventSink receives turn events. Emit must not block the turn; sinks with
// slow consumers drop rather than stall.
type EventSink interface {
	Emit(ev TurnEvent)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(TurnEvent) {}
