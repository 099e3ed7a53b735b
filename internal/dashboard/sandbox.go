package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/shoptalk/internal/gateway"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sandboxRequest is the incoming websocket message format.
type sandboxRequest struct {
	TenantID       string `json:"tenant_id"`
	ConversationID string `json:"conversation_id"` // empty for a fresh sandbox conversation
	Text           string `json:"text"`
}

// sandboxResponse is the outgoing websocket message format.
type sandboxResponse struct {
	Type           string                      `json:"type"` // "response" or "error"
	ConversationID string                      `json:"conversation_id"`
	Text           string                      `json:"text"`
	Options        []gateway.InteractiveOption `json:"options,omitempty"`
}

// handleSandbox runs full engine turns against a scratch conversation so
// operators can exercise a tenant's bot without a live channel.
func (d *Dashboard) handleSandbox(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn("sandbox websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.logger.Warn("sandbox websocket read failed", "error", err)
			}
			return
		}

		var req sandboxRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			d.sendError(conn, "", "invalid message format")
			continue
		}

		if req.TenantID == "" {
			d.sendError(conn, req.ConversationID, "tenant_id is required")
			continue
		}
		if req.Text == "" {
			d.sendError(conn, req.ConversationID, "text is required")
			continue
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = "sandbox-" + uuid.NewString()
		}

		out, err := d.turns.HandleTurn(r.Context(), gateway.InboundMessage{
			MessageID:      uuid.NewString(),
			ConversationID: conversationID,
			TenantID:       req.TenantID,
			CustomerID:     "sandbox",
			Text:           req.Text,
			ReceivedAt:     time.Now().UTC(),
		})
		if err != nil {
			d.sendError(conn, conversationID, "turn failed: "+err.Error())
			continue
		}

		d.sendResponse(conn, sandboxResponse{
			Type:           "response",
			ConversationID: conversationID,
			Text:           out.Text,
			Options:        out.InteractiveOptions,
		})
	}
}

func (d *Dashboard) sendResponse(conn *websocket.Conn, resp sandboxResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		d.logger.Warn("sandbox websocket write failed", "error", err)
	}
}

func (d *Dashboard) sendError(conn *websocket.Conn, conversationID, message string) {
	resp := sandboxResponse{
		Type:           "error",
		ConversationID: conversationID,
		Text:           message,
	}
	if err := conn.WriteJSON(resp); err != nil {
		d.logger.Warn("sandbox websocket write failed", "error", err)
	}
}
