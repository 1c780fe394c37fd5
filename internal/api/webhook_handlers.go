// Package api provides the inbound webhook handlers.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bmblueprint/dmagent/internal/models"
)

// manyChatWebhook is the payload our ManyChat external-request block posts on
// every inbound DM.
type manyChatWebhook struct {
	SubscriberID string `json:"subscriber_id"`
	Username     string `json:"ig_username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Text         string `json:"last_input_text,omitempty"`
}

// manyChatResponse is the v2 dynamic-block shape ManyChat renders back into
// the DM thread, one bubble per message.
type manyChatResponse struct {
	Version string          `json:"version"`
	Content manyChatContent `json:"content"`
}

type manyChatContent struct {
	Messages []manyChatMessage `json:"messages"`
}

type manyChatMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) manyChatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload manyChatWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.manyChatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	conversationID := payload.SubscriberID
	if conversationID == "" {
		conversationID = uuid.NewString()
		slog.Debug("Server.manyChatHandler: no subscriber id, generated conversation id",
			"conversationID", conversationID)
	}

	st, err := s.store.GetConversationState(conversationID)
	if err != nil {
		slog.Error("Server.manyChatHandler: state load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if st == nil {
		st = models.NewConversationState(conversationID)
	}
	if payload.Username != "" {
		st.InstagramUsername = payload.Username
	}
	if payload.FirstName != "" {
		st.FirstName = payload.FirstName
	}
	if payload.Gender != "" {
		st.Gender = payload.Gender
	}

	var incoming *string
	if text := strings.TrimSpace(payload.Text); text != "" {
		incoming = &text
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
	defer cancel()
	st, reply, err := s.engine.ProcessTurn(ctx, st, incoming)
	if err != nil {
		slog.Error("Server.manyChatHandler: turn processing failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error("Failed to process turn"))
		return
	}

	if err := s.store.SaveConversationState(st); err != nil {
		// The reply still goes out; the next webhook will rebuild from the
		// last good snapshot.
		slog.Error("Server.manyChatHandler: state save failed", "error", err, "conversationID", conversationID)
	}
	rec := models.TurnRecord{
		ConversationID: conversationID,
		Stage:          st.Stage,
		Reply:          reply,
		Time:           time.Now(),
	}
	if incoming != nil {
		rec.UserText = *incoming
	}
	if err := s.store.AddTurnRecord(rec); err != nil {
		slog.Warn("Server.manyChatHandler: turn record write failed", "error", err, "conversationID", conversationID)
	}

	resp := manyChatResponse{Version: "v2"}
	for _, segment := range strings.Split(reply, "\n") {
		if segment = strings.TrimSpace(segment); segment != "" {
			resp.Content.Messages = append(resp.Content.Messages, manyChatMessage{Type: "text", Text: segment})
		}
	}
	slog.Info("Server.manyChatHandler: turn processed",
		"conversationID", conversationID, "stage", st.Stage, "segments", len(resp.Content.Messages))
	writeJSONResponse(w, http.StatusOK, resp)
}

// goHighLevelWebhook is the contact payload a GoHighLevel workflow posts on
// an inbound DM, plus the event fields for booking notifications. The
// serialized conversation state rides along in the custom fields so the
// workflow stays the system of record even when our store lags.
type goHighLevelWebhook struct {
	Type           string            `json:"type,omitempty"`
	ContactID      string            `json:"contact_id,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	FirstName      string            `json:"first_name,omitempty"`
	Username       string            `json:"ig_username,omitempty"`
	Gender         string            `json:"gender,omitempty"`
	Email          string            `json:"email,omitempty"`
	Message        string            `json:"message,omitempty"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
}

// conversationStateField is the custom field carrying the serialized state.
const conversationStateField = "conversation_state"

// goHighLevelResponse is what the workflow maps back onto the contact: the
// reply to deliver plus the custom-field updates.
type goHighLevelResponse struct {
	Response     string            `json:"response"`
	Stage        models.Stage      `json:"stage"`
	IsQualified  *bool             `json:"is_qualified,omitempty"`
	CustomFields map[string]string `json:"custom_fields"`
}

// goHighLevelHandler drives a conversation turn from a GoHighLevel contact
// payload, or closes out a conversation on an appointment_booked event.
func (s *Server) goHighLevelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload goHighLevelWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.goHighLevelHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if payload.Type == "appointment_booked" {
		s.goHighLevelBooked(w, payload)
		return
	}
	// Inbound-message payloads carry no event type; anything else typed is a
	// workflow event the agent does not react to.
	if payload.Type != "" {
		slog.Debug("Server.goHighLevelHandler: ignoring event", "type", payload.Type)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Event ignored", nil))
		return
	}

	conversationID := payload.ConversationID
	if conversationID == "" {
		conversationID = payload.ContactID
	}
	if conversationID == "" {
		// GHL sends near-empty bodies when testing a webhook action.
		slog.Debug("Server.goHighLevelHandler: connection test payload")
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Webhook connected", nil))
		return
	}

	st := s.restoreGoHighLevelState(conversationID, payload.CustomFields)
	if payload.Username != "" {
		st.InstagramUsername = payload.Username
	}
	if payload.FirstName != "" {
		st.FirstName = payload.FirstName
	}
	if payload.Gender != "" {
		st.Gender = payload.Gender
	}

	var incoming *string
	if text := strings.TrimSpace(payload.Message); text != "" {
		incoming = &text
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
	defer cancel()
	st, reply, err := s.engine.ProcessTurn(ctx, st, incoming)
	if err != nil {
		slog.Error("Server.goHighLevelHandler: turn processing failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error("Failed to process turn"))
		return
	}

	if err := s.store.SaveConversationState(st); err != nil {
		slog.Error("Server.goHighLevelHandler: state save failed", "error", err, "conversationID", conversationID)
	}
	rec := models.TurnRecord{
		ConversationID: conversationID,
		Stage:          st.Stage,
		Reply:          reply,
		Time:           time.Now(),
	}
	if incoming != nil {
		rec.UserText = *incoming
	}
	if err := s.store.AddTurnRecord(rec); err != nil {
		slog.Warn("Server.goHighLevelHandler: turn record write failed", "error", err, "conversationID", conversationID)
	}

	resp := goHighLevelResponse{
		Response:     reply,
		Stage:        st.Stage,
		IsQualified:  st.IsQualified,
		CustomFields: s.goHighLevelFieldUpdates(st),
	}
	slog.Info("Server.goHighLevelHandler: turn processed",
		"conversationID", conversationID, "stage", st.Stage, "replyLength", len(reply))
	writeJSONResponse(w, http.StatusOK, resp)
}

// restoreGoHighLevelState rebuilds the conversation from the serialized
// custom field, falling back to the store and finally to a fresh state.
func (s *Server) restoreGoHighLevelState(conversationID string, customFields map[string]string) *models.ConversationState {
	if serialized := strings.TrimSpace(customFields[conversationStateField]); serialized != "" && serialized != "null" {
		st := &models.ConversationState{}
		if err := st.FromJSON(serialized); err == nil && st.Stage != "" {
			st.ConversationID = conversationID
			return st
		}
		slog.Warn("Server.restoreGoHighLevelState: unusable serialized state, falling back to store",
			"conversationID", conversationID)
	}
	st, err := s.store.GetConversationState(conversationID)
	if err != nil {
		slog.Error("Server.restoreGoHighLevelState: state load failed", "error", err, "conversationID", conversationID)
	}
	if st == nil {
		st = models.NewConversationState(conversationID)
	}
	return st
}

// goHighLevelFieldUpdates flattens the turn outcome into the custom fields
// the workflow writes back onto the contact.
func (s *Server) goHighLevelFieldUpdates(st *models.ConversationState) map[string]string {
	fields := map[string]string{"stage": string(st.Stage)}
	if serialized, err := st.ToJSON(); err == nil {
		fields[conversationStateField] = serialized
	} else {
		slog.Error("Server.goHighLevelFieldUpdates: state serialization failed",
			"error", err, "conversationID", st.ConversationID)
	}
	if st.IsQualified != nil {
		fields["is_qualified"] = strconv.FormatBool(*st.IsQualified)
		if *st.IsQualified && s.bookingLink != "" {
			fields["booking_link"] = s.bookingLink
		}
	}
	for field, key := range map[string]string{
		"intent":            models.AnswerIntent,
		"crypto_experience": models.AnswerCryptoExperience,
		"bmb_understanding": models.AnswerQ1Understanding,
		"portfolio_size":    models.AnswerQ2PortfolioSize,
		"pain_points":       models.AnswerQ3PainPoints,
		"email":             models.AnswerEmail,
	} {
		if v := st.AnswerString(key); v != "" {
			fields[field] = v
		}
	}
	return fields
}

// goHighLevelBooked closes out a conversation once the CRM reports the call
// got booked, so the agent stops messaging a lead who already converted.
func (s *Server) goHighLevelBooked(w http.ResponseWriter, payload goHighLevelWebhook) {
	if payload.ConversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: conversation_id"))
		return
	}

	st, err := s.store.GetConversationState(payload.ConversationID)
	if err != nil {
		slog.Error("Server.goHighLevelBooked: state load failed", "error", err, "conversationID", payload.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if st == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	delta := models.StateDelta{
		Stage:   models.StageEnd,
		Answers: map[string]any{models.AnswerFarewellSent: true},
	}
	if payload.Email != "" {
		delta.Answers[models.AnswerEmail] = payload.Email
	}
	st.Apply(delta)
	if err := s.store.SaveConversationState(st); err != nil {
		slog.Error("Server.goHighLevelBooked: state save failed", "error", err, "conversationID", payload.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save conversation"))
		return
	}

	slog.Info("Server.goHighLevelBooked: conversation closed after booking",
		"conversationID", payload.ConversationID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation closed", nil))
}
