// Package ghl pushes qualified leads into GoHighLevel: contact upsert,
// pipeline opportunity, and the booking link handed back to the lead.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bmblueprint/dmagent/internal/models"
)

// DefaultBaseURL is the GoHighLevel REST API root.
const DefaultBaseURL = "https://rest.gohighlevel.com/v1"

const defaultTimeout = 15 * time.Second

// Client talks to the GoHighLevel REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	pipelineID  string
	stageID     string
	bookingLink string
}

// Option configures the GoHighLevel client.
type Option func(*Client)

// WithAPIKey sets the agency API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBaseURL overrides the API root, for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPipeline sets the pipeline and stage new opportunities land in.
func WithPipeline(pipelineID, stageID string) Option {
	return func(c *Client) {
		c.pipelineID = pipelineID
		c.stageID = stageID
	}
}

// WithBookingLink sets the calendar link returned for qualified leads.
func WithBookingLink(link string) Option {
	return func(c *Client) { c.bookingLink = link }
}

// NewClient creates a GoHighLevel client. The API key is required.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("GoHighLevel API key not set")
	}
	return c, nil
}

type contactPayload struct {
	Email        string            `json:"email"`
	FirstName    string            `json:"firstName,omitempty"`
	Source       string            `json:"source"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"customField,omitempty"`
}

type contactResponse struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

type opportunityPayload struct {
	Title         string `json:"title"`
	StageID       string `json:"stageId,omitempty"`
	Status        string `json:"status"`
	ContactID     string `json:"contactId"`
	MonetaryValue int64  `json:"monetaryValue"`
	Source        string `json:"source"`
}

// CreateQualifiedLead upserts the contact, opens a pipeline opportunity
// valued by portfolio tier, and returns the booking link for the lead.
func (c *Client) CreateQualifiedLead(ctx context.Context, lead models.Lead) (string, error) {
	contact := contactPayload{
		Email:     lead.Email,
		FirstName: lead.FirstName,
		Source:    lead.Source,
		Tags:      []string{"qualified", "dm-funnel"},
		CustomFields: map[string]string{
			"instagram_username": lead.Username,
			"location":           lead.Location,
			"portfolio_size_usd": fmt.Sprintf("%d", lead.PortfolioSizeUSD),
			"pain_points":        ExpandPainPoints(lead.PainPoints),
			"bmb_understanding":  lead.BMBUnderstanding,
		},
	}
	var contactResp contactResponse
	if err := c.post(ctx, "/contacts/", contact, &contactResp); err != nil {
		return "", fmt.Errorf("contact upsert failed: %w", err)
	}
	if contactResp.Contact.ID == "" {
		return "", fmt.Errorf("contact upsert returned no contact id")
	}

	opp := opportunityPayload{
		Title:         fmt.Sprintf("DM lead: %s", leadTitle(lead)),
		StageID:       c.stageID,
		Status:        "open",
		ContactID:     contactResp.Contact.ID,
		MonetaryValue: OpportunityValue(lead.PortfolioSizeUSD),
		Source:        lead.Source,
	}
	path := fmt.Sprintf("/pipelines/%s/opportunities/", c.pipelineID)
	if err := c.post(ctx, path, opp, nil); err != nil {
		return "", fmt.Errorf("opportunity creation failed: %w", err)
	}

	slog.Info("ghl.CreateQualifiedLead: lead pushed",
		"conversationID", lead.ConversationID, "contactID", contactResp.Contact.ID,
		"monetaryValue", opp.MonetaryValue)
	return c.bookingLink, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// OpportunityValue maps portfolio size to the pipeline's expected deal value
// tiers.
func OpportunityValue(portfolioUSD int64) int64 {
	switch {
	case portfolioUSD >= 1_000_000:
		return 15_000
	case portfolioUSD >= 500_000:
		return 8_000
	case portfolioUSD >= 250_000:
		return 4_000
	case portfolioUSD >= 100_000:
		return 2_000
	default:
		return 1_000
	}
}

func leadTitle(lead models.Lead) string {
	if lead.Username != "" {
		return "@" + lead.Username
	}
	if lead.Email != "" {
		return lead.Email
	}
	return lead.ConversationID
}
