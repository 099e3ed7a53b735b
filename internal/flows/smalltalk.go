package flows

import (
	"context"
	"log/slog"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
	"github.com/ziadkadry99/shoptalk/internal/intent"
)

// Smalltalk handles greetings and unclassifiable turns with a welcome or a
// clarification prompt plus the entry menu. No model call.
type Smalltalk struct {
	logger *slog.Logger
}

func NewSmalltalk(deps Deps) *Smalltalk {
	return &Smalltalk{logger: deps.Logger}
}

func (s *Smalltalk) Name() string { return FlowSmalltalk }

func (s *Smalltalk) Start(ctx context.Context, t *Turn) (*Reply, error) {
	t.Conv.PresentMenu(TopMenu())

	lead := "Hi! How can I help you today?"
	if t.Intent != nil && t.Intent.Intent == intent.IntentOther {
		lead = "I'm not quite sure what you're after. Here's what I can do:"
	}
	return &Reply{Text: lead + "\n" + conversation.RenderMenu(t.Conv.Menu)}, nil
}

func (s *Smalltalk) Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error) {
	return nil, ErrInvalidOption
}

func (s *Smalltalk) Resume(ctx context.Context, t *Turn) (*Reply, bool, error) {
	return nil, false, nil
}
