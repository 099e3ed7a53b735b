package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// ModelRef identifies a concrete (provider, model) pair. It is the unit
// of routing, failover, and health tracking.
type ModelRef struct {
	Provider string `yaml:"provider" koanf:"provider" json:"provider"`
	Model    string `yaml:"model" koanf:"model" json:"model"`
}

// Key returns a stable string identity for the pair.
func (r ModelRef) Key() string { return r.Provider + "/" + r.Model }

// IsZero reports whether the ref is unset.
func (r ModelRef) IsZero() bool { return r.Provider == "" && r.Model == "" }

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
