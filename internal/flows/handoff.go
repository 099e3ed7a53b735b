package flows

import (
	"context"
	"log/slog"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
)

// Handoff transfers the conversation to a human. Once handed off, automated
// handling stops until the handoff is explicitly cleared.
type Handoff struct {
	logger *slog.Logger
}

func NewHandoff(deps Deps) *Handoff {
	return &Handoff{logger: deps.Logger}
}

func (h *Handoff) Name() string { return FlowHandoff }

const handoffReply = "I'm connecting you with a member of our team. They'll pick up this conversation shortly."

func (h *Handoff) Start(ctx context.Context, t *Turn) (*Reply, error) {
	t.Conv.Handoff()
	return &Reply{Text: handoffReply}, nil
}

func (h *Handoff) Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error) {
	t.Conv.Handoff()
	return &Reply{Text: handoffReply}, nil
}

func (h *Handoff) Resume(ctx context.Context, t *Turn) (*Reply, bool, error) {
	return nil, false, nil
}
