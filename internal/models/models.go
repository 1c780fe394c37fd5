package models

import "time"

// Lead carries the qualification answers handed to the CRM sink once a
// conversation qualifies.
type Lead struct {
	ConversationID   string `json:"conversation_id"`
	FirstName        string `json:"first_name,omitempty"`
	Username         string `json:"username,omitempty"`
	Email            string `json:"email,omitempty"`
	Location         string `json:"location,omitempty"`
	PortfolioSizeUSD int64  `json:"portfolio_size_usd"`
	PainPoints       string `json:"pain_points,omitempty"`
	BMBUnderstanding string `json:"bmb_understanding,omitempty"`
	Source           string `json:"source"`
}

// TurnRecord is the audit log entry written after each processed turn.
type TurnRecord struct {
	ConversationID string    `json:"conversation_id"`
	Stage          Stage     `json:"stage"`
	UserText       string    `json:"user_text,omitempty"`
	Reply          string    `json:"reply,omitempty"`
	Time           time.Time `json:"time"`
}
