package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ziadkadry99/shoptalk/internal/payments"
)

// Webhook receives channel posts and payment callbacks over HTTP and hands
// them to the engine. Replies ride back on the HTTP response and, when a
// Sender is configured, are also pushed through it.
type Webhook struct {
	turns    TurnHandler
	payments PaymentHandler
	sender   Sender
	logger   *slog.Logger
}

// NewWebhook creates the webhook adapter. sender may be nil when the
// channel consumes replies from the HTTP response only.
func NewWebhook(turns TurnHandler, paymentHandler PaymentHandler, sender Sender, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		turns:    turns,
		payments: paymentHandler,
		sender:   sender,
		logger:   logger.With("component", "webhook"),
	}
}

// Routes mounts the webhook endpoints on a chi router.
func (w *Webhook) Routes(r chi.Router) {
	r.Post("/webhook/message", w.handleMessage)
	r.Post("/webhook/payment", w.handlePayment)
}

func (w *Webhook) handleMessage(rw http.ResponseWriter, r *http.Request) {
	var msg InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(rw, http.StatusBadRequest, fmt.Errorf("decoding message: %w", err))
		return
	}
	if msg.ConversationID == "" || msg.TenantID == "" {
		writeError(rw, http.StatusBadRequest, errors.New("conversation_id and tenant_id are required"))
		return
	}
	if msg.MessageID == "" {
		// A channel without ids gets one; idempotency then only covers
		// retries within our own infrastructure.
		msg.MessageID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	out, err := w.turns.HandleTurn(r.Context(), msg)
	if err != nil {
		w.logger.Error("turn failed",
			"conversation", msg.ConversationID, "tenant", msg.TenantID, "error", err)
		writeError(rw, http.StatusInternalServerError, errors.New("turn processing failed"))
		return
	}

	w.deliver(r.Context(), out)
	writeJSON(rw, http.StatusOK, out)
}

// paymentCallback is the payment provider's result payload.
type paymentCallback struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func (w *Webhook) handlePayment(rw http.ResponseWriter, r *http.Request) {
	var cb paymentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeError(rw, http.StatusBadRequest, fmt.Errorf("decoding callback: %w", err))
		return
	}
	if cb.Reference == "" {
		writeError(rw, http.StatusBadRequest, errors.New("reference is required"))
		return
	}

	status := payments.StatusFailed
	if cb.Status == string(payments.StatusPaid) {
		status = payments.StatusPaid
	}

	out, err := w.payments.HandlePaymentResult(r.Context(), payments.Result{
		Reference: cb.Reference,
		Status:    status,
	})
	if err != nil {
		w.logger.Error("payment callback failed", "reference", cb.Reference, "error", err)
		writeError(rw, http.StatusInternalServerError, errors.New("payment processing failed"))
		return
	}

	w.deliver(r.Context(), out)
	writeJSON(rw, http.StatusOK, out)
}

// deliver pushes the reply through the sender, fire and forget.
func (w *Webhook) deliver(ctx context.Context, out OutboundMessage) {
	if w.sender == nil || out.Empty() {
		return
	}
	if err := w.sender.Send(ctx, out); err != nil {
		w.logger.Warn("outbound delivery failed", "conversation", out.ConversationID, "error", err)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, err error) {
	writeJSON(rw, status, map[string]string{"error": err.Error()})
}
