// Package api provides the admin endpoints for inspecting and taking over
// live conversations.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bmblueprint/dmagent/internal/models"
)

// conversationSummary is the list-view projection of a conversation.
type conversationSummary struct {
	ConversationID string       `json:"conversation_id"`
	Stage          models.Stage `json:"stage"`
	Username       string       `json:"username,omitempty"`
	IsQualified    *bool        `json:"is_qualified,omitempty"`
	MessageCount   int          `json:"message_count"`
	UpdatedAt      string       `json:"updated_at"`
}

func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	states, err := s.store.ListConversationStates()
	if err != nil {
		slog.Error("Server.listConversationsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}

	summaries := make([]conversationSummary, 0, len(states))
	for _, st := range states {
		summaries = append(summaries, conversationSummary{
			ConversationID: st.ConversationID,
			Stage:          st.Stage,
			Username:       st.InstagramUsername,
			IsQualified:    st.IsQualified,
			MessageCount:   len(st.Messages),
			UpdatedAt:      st.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summaries))
}

// conversationHandler routes /conversations/{id}, /conversations/{id}/turns,
// and /conversations/{id}/takeover.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing conversation id"))
		return
	}

	switch action {
	case "":
		s.getConversation(w, r, id)
	case "turns":
		s.getConversationTurns(w, r, id)
	case "takeover":
		s.takeoverConversation(w, r, id)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown conversation action"))
	}
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st, err := s.store.GetConversationState(id)
	if err != nil {
		slog.Error("Server.getConversation: load failed", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if st == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(st))
}

func (s *Server) getConversationTurns(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	recs, err := s.store.GetTurnRecords(id)
	if err != nil {
		slog.Error("Server.getConversationTurns: load failed", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load turn records"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}

// takeoverConversation parks a conversation in the human-override stage so
// the agent stays silent while an operator handles it directly.
func (s *Server) takeoverConversation(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st, err := s.store.GetConversationState(id)
	if err != nil {
		slog.Error("Server.takeoverConversation: load failed", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if st == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	st.Apply(models.StateDelta{Stage: models.StageHumanOverride, ClearQualified: true})
	if err := s.store.SaveConversationState(st); err != nil {
		slog.Error("Server.takeoverConversation: save failed", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save conversation"))
		return
	}

	slog.Info("Server.takeoverConversation: conversation handed to operator", "conversationID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation handed to operator", nil))
}
