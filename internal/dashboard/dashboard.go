// Package dashboard provides the operator websockets: a sandbox chat for
// exercising the engine without a messaging channel, and a live turn-event
// feed.
package dashboard

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/shoptalk/internal/gateway"
)

// Dashboard serves the sandbox chat and the event feed.
type Dashboard struct {
	turns  gateway.TurnHandler
	hub    *Hub
	logger *slog.Logger
}

// New creates a Dashboard. The hub should also be registered as the engine's
// event sink so /ws/events sees live turns.
func New(turns gateway.TurnHandler, hub *Hub, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		turns:  turns,
		hub:    hub,
		logger: logger.With("component", "dashboard"),
	}
}

// Hub returns the event hub so it can be wired as the engine's sink.
func (d *Dashboard) Hub() *Hub { return d.hub }

// RegisterRoutes mounts the dashboard websockets onto the given router.
func (d *Dashboard) RegisterRoutes(r chi.Router) {
	r.Get("/ws/sandbox", d.handleSandbox)
	r.Get("/ws/events", d.handleEvents)
}
