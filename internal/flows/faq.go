package flows

import (
	"context"
	"log/slog"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
)

// FAQ answers policy and product questions from grounded facts. With no
// retrieved facts it answers "I don't have that information" instead of
// letting the model answer from memory.
type FAQ struct {
	reason ReasonFunc
	logger *slog.Logger
}

func NewFAQ(deps Deps) *FAQ {
	return &FAQ{reason: deps.Reason, logger: deps.Logger}
}

func (f *FAQ) Name() string { return FlowFAQ }

const faqSystemPrompt = `You are a customer support assistant for a small business.
Answer the customer's question using ONLY the facts provided below.
If the facts do not answer the question, say you don't know.
Never invent prices, policies, or availability.
Keep the answer short and conversational.`

func (f *FAQ) Start(ctx context.Context, t *Turn) (*Reply, error) {
	if t.Grounding.Empty() {
		return &Reply{Text: dontKnowReply}, nil
	}

	draft, err := f.reason(ctx, ReasonRequest{
		Conv:      t.Conv,
		Snap:      t.Snap,
		System:    faqSystemPrompt + "\n\nFacts:\n" + t.Grounding.Summary,
		Prompt:    t.Text,
		Grounding: t.Grounding,
	})
	if err != nil {
		return nil, err
	}

	t.Conv.Reset()
	return &Reply{Text: draft, Facts: t.Grounding.Facts, Grounded: true}, nil
}

func (f *FAQ) Option(ctx context.Context, t *Turn, opt conversation.MenuOption) (*Reply, error) {
	return nil, ErrInvalidOption
}

func (f *FAQ) Resume(ctx context.Context, t *Turn) (*Reply, bool, error) {
	return nil, false, nil
}
