package engine

import "fmt"

// StateCorruptionError marks an invariant violation in persisted
// conversation state, e.g. a menu payload referencing a missing option. It
// is fatal for that turn only: the conversation is reset to IDLE and the
// customer receives a generic re-prompt.
type StateCorruptionError struct {
	ConversationID string
	Reason         string
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("conversation %s state corrupted: %s", e.ConversationID, e.Reason)
}

// Customer-facing fallback texts for the recoverable failure classes.
const (
	clarifyReply   = "Sorry, I didn't quite catch that. Could you rephrase?"
	corruptedReply = "Something went wrong on my end, let's start over. How can I help?"
	exhaustedReply = "I'm having trouble answering right now. I'm connecting you with a member of our team."
)
