// Package conversation owns per-conversation state: the enumerated state
// machine fields, the SQLite-backed store, deterministic menu and slot
// matching, per-conversation turn serialization, and the idempotency ledger.
package conversation

import "time"

// State enumerates the conversation state machine.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingMenu    State = "awaiting_menu_reply"
	StateAwaitingSlot    State = "awaiting_slot"
	StateInFlow          State = "in_flow"
	StateAwaitingHandoff State = "awaiting_handoff"
)

// MenuOption is one entry of a presented menu. Payload is opaque to the
// customer and binds the option to the flow that presented it.
type MenuOption struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
	Flow    string `json:"flow"`
}

// Conversation is the persisted per-conversation state row. At most one flow
// is active at a time; Menu is cleared whenever a new menu is presented or
// the flow changes.
type Conversation struct {
	ID               string
	TenantID         string
	CustomerID       string
	State            State
	Flow             string
	Step             string
	AwaitingSlot     string
	AwaitingResponse bool
	Menu             []MenuOption
	Metadata         map[string]string
	LowConfidence    int
	Active           bool
	LastActivity     time.Time
	CreatedAt        time.Time
}

// PresentMenu replaces any previous menu and moves to AWAITING_MENU_REPLY.
func (c *Conversation) PresentMenu(options []MenuOption) {
	c.Menu = options
	c.State = StateAwaitingMenu
	c.AwaitingResponse = true
}

// EnterFlow starts a flow at the given step. Entering a flow clears the menu.
func (c *Conversation) EnterFlow(flow, step string) {
	c.Flow = flow
	c.Step = step
	c.State = StateInFlow
	c.AwaitingSlot = ""
	c.Menu = nil
	c.AwaitingResponse = true
}

// AwaitSlot parks the flow waiting for one named slot value.
func (c *Conversation) AwaitSlot(flow, step, slot string) {
	c.Flow = flow
	c.Step = step
	c.AwaitingSlot = slot
	c.State = StateAwaitingSlot
	c.Menu = nil
	c.AwaitingResponse = true
}

// Handoff ends automated handling until explicitly cleared.
func (c *Conversation) Handoff() {
	c.State = StateAwaitingHandoff
	c.Flow = ""
	c.Step = ""
	c.AwaitingSlot = ""
	c.Menu = nil
	c.AwaitingResponse = false
}

// ClearHandoff returns a handed-off conversation to automated handling.
func (c *Conversation) ClearHandoff() {
	if c.State == StateAwaitingHandoff {
		c.Reset()
	}
}

// Reset returns the conversation to IDLE, dropping flow, menu, and slot
// accumulator. Used on flow completion and on state corruption.
func (c *Conversation) Reset() {
	c.State = StateIdle
	c.Flow = ""
	c.Step = ""
	c.AwaitingSlot = ""
	c.Menu = nil
	c.Metadata = map[string]string{}
	c.AwaitingResponse = false
}

// Touch bumps the activity timestamp and low-confidence bookkeeping hooks.
func (c *Conversation) Touch(now time.Time) {
	c.LastActivity = now
}
