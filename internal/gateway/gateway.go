// Package gateway defines the messaging-channel contract: inbound message
// events (delivered at least once), outbound message calls (fire and
// forget), and the webhook HTTP adapter that bridges a channel to the turn
// engine.
package gateway

import (
	"context"
	"time"

	"github.com/ziadkadry99/shoptalk/internal/payments"
)

// InboundMessage is one customer message event from the channel. MessageID
// is the idempotency key: redelivery of the same id must not re-run
// business side effects.
type InboundMessage struct {
	MessageID       string            `json:"message_id"`
	ConversationID  string            `json:"conversation_id"`
	TenantID        string            `json:"tenant_id"`
	CustomerID      string            `json:"customer_id"`
	Text            string            `json:"text"`
	ChannelMetadata map[string]string `json:"channel_metadata,omitempty"`
	ReceivedAt      time.Time         `json:"received_at"`
}

// InteractiveOption is one tappable reply option on an outbound message.
type InteractiveOption struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// OutboundMessage is what the core hands to the channel for delivery.
type OutboundMessage struct {
	ConversationID     string              `json:"conversation_id"`
	Text               string              `json:"text"`
	InteractiveOptions []InteractiveOption `json:"interactive_options,omitempty"`
}

// Empty reports whether there is nothing to deliver, e.g. a handed-off
// conversation that receives no automated reply.
func (m OutboundMessage) Empty() bool { return m.Text == "" }

// Sender delivers outbound messages to the channel. Delivery failure is the
// channel's concern; the core fires and forgets.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// TurnHandler processes one inbound message into an outbound reply. The
// engine implements it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, msg InboundMessage) (OutboundMessage, error)
}

// PaymentHandler consumes asynchronous payment-result callbacks.
type PaymentHandler interface {
	HandlePaymentResult(ctx context.Context, res payments.Result) (OutboundMessage, error)
}
