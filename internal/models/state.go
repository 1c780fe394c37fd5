package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Role tags a conversation message with its author.
type Role string

const (
	RoleHuman Role = "human"
	RoleAgent Role = "agent"
)

// Message is a single turn in the conversation transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Answer keys captured during qualification.
const (
	AnswerIntent           = "intent"
	AnswerLocation         = "location"
	AnswerCryptoExperience = "crypto_experience"
	AnswerQ1Understanding  = "Q1_bmb_understanding"
	AnswerQ2PortfolioSize  = "Q2_portfolio_size"
	AnswerQ2PortfolioUSD   = "Q2_portfolio_usd"
	AnswerQ3PainPoints     = "Q3_pain_points"
	AnswerEmail            = "email"
	AnswerNurtureSent      = "nurture_sent"
	AnswerFarewellSent     = "farewell_sent"
)

// ConversationState is the single mutable aggregate threaded through a turn.
// It is owned exclusively by the caller between turns and persisted externally
// keyed by ConversationID.
type ConversationState struct {
	ConversationID    string            `json:"conversation_id"`
	Stage             Stage             `json:"stage"`
	Messages          []Message         `json:"messages"`
	Answers           map[string]any    `json:"answers,omitempty"`
	LastQuestionAsked string            `json:"last_question_asked,omitempty"`
	IsQualified       *bool             `json:"is_qualified,omitempty"`
	RepromptAttempts  map[string]int    `json:"reprompt_attempts,omitempty"`
	Location          string            `json:"location,omitempty"`
	Gender            string            `json:"gender,omitempty"`
	FirstName         string            `json:"first_name,omitempty"`
	InstagramUsername string            `json:"instagram_username,omitempty"`
	AvailableSlots    []string          `json:"available_slots,omitempty"`
	IsSpecific        *bool             `json:"is_specific,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	// Response is the outbound text for the current turn, newline-delimited
	// when multi-segment. Transient: recomputed every turn, never read back.
	Response string `json:"response,omitempty"`
}

// NewConversationState creates an empty state positioned at the greeting stage.
func NewConversationState(conversationID string) *ConversationState {
	now := time.Now()
	return &ConversationState{
		ConversationID:   conversationID,
		Stage:            StageGreeting,
		Answers:          make(map[string]any),
		RepromptAttempts: make(map[string]int),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// StateDelta is the partial update a stage handler returns for one turn.
// Field semantics mirror the per-field merge rules of the state aggregate:
// Messages append, Answers and RepromptAttempts upsert key-wise, everything
// else replaces wholesale when set.
type StateDelta struct {
	Messages          []Message
	Stage             Stage // empty means unchanged
	Answers           map[string]any
	LastQuestionAsked *string
	IsQualified       *bool
	ClearQualified    bool // reset the tri-state back to unset
	RepromptAttempts  map[string]int
	Location          *string
	Gender            *string
	AvailableSlots    []string
	IsSpecific        *bool
	Response          *string
}

// Apply merges a handler delta into the state using the field-specific rules:
// messages are appended in order, answers and reprompt counters are upserted
// (keys are never deleted), scalars are replaced wholesale.
func (s *ConversationState) Apply(d StateDelta) {
	s.Messages = append(s.Messages, d.Messages...)
	if d.Stage != "" {
		s.Stage = d.Stage
	}
	if len(d.Answers) > 0 {
		if s.Answers == nil {
			s.Answers = make(map[string]any, len(d.Answers))
		}
		for k, v := range d.Answers {
			s.Answers[k] = v
		}
	}
	if d.LastQuestionAsked != nil {
		s.LastQuestionAsked = *d.LastQuestionAsked
	}
	if d.ClearQualified {
		s.IsQualified = nil
	} else if d.IsQualified != nil {
		q := *d.IsQualified
		s.IsQualified = &q
	}
	if len(d.RepromptAttempts) > 0 {
		if s.RepromptAttempts == nil {
			s.RepromptAttempts = make(map[string]int, len(d.RepromptAttempts))
		}
		for k, v := range d.RepromptAttempts {
			s.RepromptAttempts[k] = v
		}
	}
	if d.Location != nil {
		s.Location = *d.Location
	}
	if d.Gender != nil {
		s.Gender = *d.Gender
	}
	if d.AvailableSlots != nil {
		s.AvailableSlots = d.AvailableSlots
	}
	if d.IsSpecific != nil {
		v := *d.IsSpecific
		s.IsSpecific = &v
	}
	if d.Response != nil {
		s.Response = *d.Response
	}
	s.UpdatedAt = time.Now()
}

// LastUserMessage returns the content of the most recent human message, or
// the empty string when the user has not written yet.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content
		}
	}
	return ""
}

// RecentAgentLines returns the contents of the last n agent messages, oldest
// first. Used for repetition avoidance in reply composition.
func (s *ConversationState) RecentAgentLines(n int) []string {
	var lines []string
	for i := len(s.Messages) - 1; i >= 0 && len(lines) < n; i-- {
		if s.Messages[i].Role == RoleAgent {
			lines = append(lines, s.Messages[i].Content)
		}
	}
	// Reverse into chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines
}

// AnswerString returns the answer under key rendered as a string.
func (s *ConversationState) AnswerString(key string) string {
	v, ok := s.Answers[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// AnswerInt returns the answer under key as an integer. JSON round-trips turn
// numbers into float64, so both numeric forms are accepted.
func (s *ConversationState) AnswerInt(key string) (int64, bool) {
	switch t := s.Answers[key].(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ToJSON serializes the state for persistence.
func (s *ConversationState) ToJSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSON deserializes a persisted state.
func (s *ConversationState) FromJSON(data string) error {
	return json.Unmarshal([]byte(data), s)
}
