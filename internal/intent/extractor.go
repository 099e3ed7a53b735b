package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ziadkadry99/shoptalk/internal/llm"
)

// LLMExtractor implements Extractor with a single fixed (provider, model)
// pair. Extraction is deliberately outside the failover path: a failed
// extraction is treated as a low-confidence result by the caller, not
// retried against more expensive models.
type LLMExtractor struct {
	provider llm.Provider
	model    string
}

// NewLLMExtractor creates an extractor over the given provider and model.
func NewLLMExtractor(provider llm.Provider, model string) *LLMExtractor {
	return &LLMExtractor{provider: provider, model: model}
}

const extractorSystemPrompt = `You classify customer messages for a commerce assistant.
Respond with a single JSON object:
{
  "intent": one of "browse", "book", "order", "faq", "payment_help", "handoff", "greeting", "other",
  "confidence": number between 0 and 1,
  "slots": object with any of: "product", "service", "date" (YYYY-MM-DD), "time" (HH:MM), "quantity",
  "reasoning": one short sentence
}
Use "handoff" when the customer asks for a human. Use "other" when unsure.
Only output the JSON object, nothing else.`

func buildExtractionPrompt(in Input) string {
	var b strings.Builder
	if in.Summary != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(in.Summary)
		b.WriteString("\n\n")
	}
	b.WriteString("Customer message:\n")
	b.WriteString(in.Text)
	return b.String()
}

// Extract classifies the input and returns a validated result.
func (e *LLMExtractor) Extract(ctx context.Context, in Input) (*Result, error) {
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractorSystemPrompt},
			{Role: llm.RoleUser, Content: buildExtractionPrompt(in)},
		},
		MaxTokens:   512,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("extractor completion: %w", err)
	}

	return ParseExtraction(resp.Content)
}

// rawExtraction mirrors the model's JSON shape before validation. Slots are
// decoded as any so non-scalar values can be rejected.
type rawExtraction struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Slots      map[string]any `json:"slots"`
	Reasoning  string         `json:"reasoning"`
}

// ParseExtraction validates raw model output against the closed vocabulary.
// Malformed output is rejected outright, never partially repaired.
func ParseExtraction(content string) (*Result, error) {
	// The JSON may be wrapped in markdown fences or prose.
	jsonStr := content
	if idx := strings.Index(content, "{"); idx >= 0 {
		jsonStr = content[idx:]
	}
	if idx := strings.LastIndex(jsonStr, "}"); idx >= 0 {
		jsonStr = jsonStr[:idx+1]
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("malformed extraction output: %w", err)
	}
	if raw.Intent == "" {
		return nil, fmt.Errorf("malformed extraction output: missing intent")
	}

	// Keep scalar slot values only; drop arrays, objects, and nulls.
	slots := map[string]string{}
	for key, val := range raw.Slots {
		switch v := val.(type) {
		case string:
			if v != "" {
				slots[key] = v
			}
		case float64:
			slots[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			slots[key] = strconv.FormatBool(v)
		}
	}

	return Sanitize(raw.Intent, raw.Confidence, slots, raw.Reasoning), nil
}
