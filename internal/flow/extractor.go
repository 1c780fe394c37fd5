package flow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmblueprint/dmagent/internal/genai"
)

// DefaultSpecificityCriteria lists the reply characteristics that trigger a
// handoff to a human operator. Deployments can swap these out with
// WithSpecificityCriteria without touching the escalation mechanics.
const DefaultSpecificityCriteria = `A reply is HIGHLY SPECIFIC when it does any of the following:
- asks for concrete financial advice on a named asset, position, or trade
- describes a detailed personal financial situation (debts, exact holdings, tax questions)
- mentions legal, regulatory, or compliance matters
- raises a complaint, refund request, or dispute
- discusses a personal crisis or sensitive personal circumstances
Casual talk, rough numbers, and general curiosity about the program are NOT highly specific.`

const locationSystemPrompt = `Extract the place name (city, region, or country) the user mentions.
Respond with only the place name on a single line. If no place is mentioned, respond with NONE.`

const portfolioSystemPrompt = `Extract the size of the user's crypto/investment portfolio in US dollars from their reply.
Interpret worded amounts ("fifty grand" is 50000, "a quarter mil" is 250000, "six figures" is 100000).
Respond with only the integer number of dollars on a single line.
If the reply gives no amount, or the user declines to say, respond with NONE.`

// amountPattern matches a number with optional thousands separators followed
// by an optional k/m magnitude suffix, e.g. "75k", "1.5m", "120,000".
var amountPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([kKmM]?)`)

// OracleExtractor pulls structured fields from free text, preferring cheap
// deterministic parsing and falling back to the oracle only when needed.
type OracleExtractor struct {
	genAI    genai.ClientInterface
	criteria string
}

// ExtractorOption configures an OracleExtractor.
type ExtractorOption func(*OracleExtractor)

// WithSpecificityCriteria replaces the default escalation criteria.
func WithSpecificityCriteria(criteria string) ExtractorOption {
	return func(e *OracleExtractor) { e.criteria = criteria }
}

// NewOracleExtractor creates an extractor backed by the given oracle client.
func NewOracleExtractor(client genai.ClientInterface, opts ...ExtractorOption) *OracleExtractor {
	e := &OracleExtractor{genAI: client, criteria: DefaultSpecificityCriteria}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractLocation isolates the place name in text. When the oracle fails or
// finds nothing, the original text is returned so the conversation can move
// on with whatever the user wrote.
func (e *OracleExtractor) ExtractLocation(ctx context.Context, text string) string {
	raw, err := e.genAI.GeneratePromptWithContext(ctx, locationSystemPrompt, text)
	if err != nil {
		slog.Warn("OracleExtractor.ExtractLocation: oracle failed, keeping original text", "error", err)
		return text
	}
	place := strings.Trim(strings.TrimSpace(raw), `"'`)
	if place == "" || strings.EqualFold(place, "NONE") {
		return text
	}
	return place
}

// ParsePortfolioSize recovers a whole-dollar portfolio amount from the reply.
// Digit-bearing replies are parsed locally; worded amounts go to the oracle.
// The second return is false when no amount could be recovered.
func (e *OracleExtractor) ParsePortfolioSize(ctx context.Context, text string) (int64, bool) {
	if m := amountPattern.FindStringSubmatch(text); m != nil {
		num, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil {
			switch strings.ToLower(m[2]) {
			case "k":
				num *= 1_000
			case "m":
				num *= 1_000_000
			}
			return int64(math.Round(num)), true
		}
	}

	raw, err := e.genAI.GeneratePromptWithContext(ctx, portfolioSystemPrompt, text)
	if err != nil {
		slog.Warn("OracleExtractor.ParsePortfolioSize: oracle failed, no amount recovered", "error", err)
		return 0, false
	}
	out := strings.TrimSpace(raw)
	if out == "" || strings.EqualFold(out, "NONE") {
		return 0, false
	}
	num, err := strconv.ParseFloat(strings.ReplaceAll(out, ",", ""), 64)
	if err != nil {
		slog.Warn("OracleExtractor.ParsePortfolioSize: unparseable oracle output", "output", out)
		return 0, false
	}
	return int64(math.Round(num)), true
}

// CheckHighSpecificity asks the oracle whether the reply crosses the
// escalation criteria. Failures report false so the funnel keeps moving
// rather than escalating spuriously.
func (e *OracleExtractor) CheckHighSpecificity(ctx context.Context, question, reply string) bool {
	system := e.criteria + "\n\nRespond with only YES or NO."
	user := fmt.Sprintf("Question asked: %q\nUser reply: %q\n\nIs the reply HIGHLY SPECIFIC?", question, reply)
	raw, err := e.genAI.GeneratePromptWithContext(ctx, system, user)
	if err != nil {
		slog.Warn("OracleExtractor.CheckHighSpecificity: oracle failed, not escalating", "error", err)
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw)), "YES")
}
