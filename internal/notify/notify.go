// Package notify wraps the Twilio API for operator SMS alerts: escalated
// conversations and fresh qualified leads.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/bmblueprint/dmagent/internal/models"
)

// Opts holds configuration options for the Twilio SMS notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	ToNumber   string
}

// Option defines a configuration option for the Twilio SMS notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithToNumber sets the operator phone number alerts go to.
func WithToNumber(to string) Option {
	return func(o *Opts) { o.ToNumber = to }
}

// TwilioNotifier sends operator alerts over SMS.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewTwilioNotifier creates an SMS notifier. Credentials fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER, and
// OPERATOR_PHONE_NUMBER environment variables.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.ToNumber == "" {
		cfg.ToNumber = os.Getenv("OPERATOR_PHONE_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "",
		"ToNumber_set", cfg.ToNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" || cfg.ToNumber == "" {
		return nil, fmt.Errorf("from and operator numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioNotifier{client: client, from: cfg.FromNumber, to: cfg.ToNumber}, nil
}

// NotifyEscalation alerts the operator that a conversation was handed over.
func (n *TwilioNotifier) NotifyEscalation(ctx context.Context, conversationID, lastUserMessage string) error {
	body := fmt.Sprintf("DM handover needed (conversation %s). Last message: %q", conversationID, truncate(lastUserMessage, 200))
	return n.send(body)
}

// NotifyQualifiedLead alerts the operator that a lead qualified and left an
// email.
func (n *TwilioNotifier) NotifyQualifiedLead(ctx context.Context, lead models.Lead) error {
	body := fmt.Sprintf("Qualified lead @%s: %s, portfolio ~$%d (conversation %s)",
		lead.Username, lead.Email, lead.PortfolioSizeUSD, lead.ConversationID)
	return n.send(body)
}

func (n *TwilioNotifier) send(body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(body)

	_, err := n.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio notification failed", "to", n.to, "error", err)
		return fmt.Errorf("failed to send notification to %s: %w", n.to, err)
	}
	slog.Debug("Twilio notification sent", "to", n.to)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// NoopNotifier silently drops every alert. Used when SMS is not configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyEscalation(ctx context.Context, conversationID, lastUserMessage string) error {
	slog.Debug("NoopNotifier: escalation dropped", "conversationID", conversationID)
	return nil
}

func (NoopNotifier) NotifyQualifiedLead(ctx context.Context, lead models.Lead) error {
	slog.Debug("NoopNotifier: qualified lead dropped", "conversationID", lead.ConversationID)
	return nil
}

// MockNotifier records alerts for tests.
type MockNotifier struct {
	Escalations    []string
	QualifiedLeads []models.Lead
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyEscalation(ctx context.Context, conversationID, lastUserMessage string) error {
	m.Escalations = append(m.Escalations, conversationID)
	return nil
}

func (m *MockNotifier) NotifyQualifiedLead(ctx context.Context, lead models.Lead) error {
	m.QualifiedLeads = append(m.QualifiedLeads, lead)
	return nil
}
