package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/shoptalk/internal/conversation"
)

// opsRoutes mounts the operator API under /ops. These routes read the same
// stores the engine writes and are intentionally unauthenticated: the server
// is expected to sit behind the operator's own ingress.
func (s *Server) opsRoutes(r chi.Router) {
	r.Route("/ops", func(r chi.Router) {
		r.Get("/providers", s.handleProviders)
		r.Post("/providers/reset", s.handleProvidersReset)
		r.Get("/usage", s.handleUsage)
		r.Get("/conversations/{id}", s.handleConversation)
		r.Post("/conversations/{id}/clear-handoff", s.handleClearHandoff)
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	statuses := s.deps.Health.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"providers": statuses})
}

func (s *Server) handleProvidersReset(w http.ResponseWriter, r *http.Request) {
	s.deps.Health.Reset()
	s.logger.Info("provider health reset by operator")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant")
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeOpsError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	summaries, err := s.deps.Usage.ByTenant(r.Context(), tenantID, since)
	if err != nil {
		writeOpsError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since":     since.UTC().Format(time.RFC3339),
		"summaries": summaries,
	})
}

// conversationView is the operator-facing projection of a conversation row.
type conversationView struct {
	ID               string                    `json:"id"`
	TenantID         string                    `json:"tenant_id"`
	CustomerID       string                    `json:"customer_id"`
	State            conversation.State        `json:"state"`
	Flow             string                    `json:"flow,omitempty"`
	Step             string                    `json:"step,omitempty"`
	AwaitingSlot     string                    `json:"awaiting_slot,omitempty"`
	AwaitingResponse bool                      `json:"awaiting_response"`
	Menu             []conversation.MenuOption `json:"menu,omitempty"`
	Metadata         map[string]string         `json:"metadata,omitempty"`
	LowConfidence    int                       `json:"low_confidence"`
	Active           bool                      `json:"active"`
	LastActivity     time.Time                 `json:"last_activity"`
	CreatedAt        time.Time                 `json:"created_at"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.deps.Conversations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeOpsError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeOpsError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, conversationView{
		ID:               conv.ID,
		TenantID:         conv.TenantID,
		CustomerID:       conv.CustomerID,
		State:            conv.State,
		Flow:             conv.Flow,
		Step:             conv.Step,
		AwaitingSlot:     conv.AwaitingSlot,
		AwaitingResponse: conv.AwaitingResponse,
		Menu:             conv.Menu,
		Metadata:         conv.Metadata,
		LowConfidence:    conv.LowConfidence,
		Active:           conv.Active,
		LastActivity:     conv.LastActivity,
		CreatedAt:        conv.CreatedAt,
	})
}

func (s *Server) handleClearHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Handoffs.ClearHandoff(r.Context(), id); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeOpsError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeOpsError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("handoff cleared by operator", "conversation_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOpsError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
