// Package flow implements the sales-qualification conversation engine: a
// stage-driven state machine that walks an Instagram DM lead from greeting
// through qualification to either a booked-call handoff or a nurture exit.
//
// Oracle-backed concerns (classification, extraction, reply composition) sit
// behind small interfaces so the engine and the stage handlers stay
// deterministic and testable with fakes.
package flow

import (
	"context"

	"github.com/bmblueprint/dmagent/internal/models"
)

// ClassificationKind is the four-way verdict on a user reply relative to the
// question the agent last asked.
type ClassificationKind string

const (
	// ClassAnswered means the reply addresses the pending question; Content
	// carries the extracted answer.
	ClassAnswered ClassificationKind = "ANSWERED"
	// ClassQuestion means the reply is a counter-question; Content carries
	// the question to address.
	ClassQuestion ClassificationKind = "QUESTION"
	// ClassOffTopic means the reply ignores the pending question; Content
	// carries the original user text.
	ClassOffTopic ClassificationKind = "OFF_TOPIC"
	// ClassNotAnswered is the numeric-mode verdict for replies that dodge a
	// quantitative question without changing the subject.
	ClassNotAnswered ClassificationKind = "NOT_ANSWERED"
)

// Classification is the structured result of classifying one user reply.
type Classification struct {
	Kind    ClassificationKind
	Content string
}

// Classifier decides how a user reply relates to the pending question.
// Implementations must degrade gracefully: on any oracle failure they return
// an ANSWERED classification carrying the raw user text, never an error.
type Classifier interface {
	// Classify runs the standard three-way classification
	// (ANSWERED / QUESTION / OFF_TOPIC).
	Classify(ctx context.Context, question, reply string) Classification
	// ClassifyNumeric runs the quantitative variant used at the portfolio
	// question (ANSWERED / QUESTION / NOT_ANSWERED).
	ClassifyNumeric(ctx context.Context, question, reply string) Classification
}

// Extractor pulls structured fields out of free-form user text. All methods
// absorb oracle failures and fall back to a safe default.
type Extractor interface {
	// ExtractLocation returns the place name mentioned in text, or the
	// original text when no place can be isolated.
	ExtractLocation(ctx context.Context, text string) string
	// ParsePortfolioSize returns the portfolio amount in whole USD. The
	// second return is false when no amount could be recovered.
	ParsePortfolioSize(ctx context.Context, text string) (int64, bool)
	// CheckHighSpecificity reports whether the reply is so specific or
	// sensitive that a human should take over. Failures report false.
	CheckHighSpecificity(ctx context.Context, question, reply string) bool
}

// Directive tells the composer what the next reply must accomplish. The
// composer owns voice and wording; the handler owns intent and content.
type Directive struct {
	// Intent describes what the reply must do, e.g. "acknowledge the answer
	// and ask for a rough portfolio number".
	Intent string
	// UserMessage is the user text being responded to, when any.
	UserMessage string
	// Context is a short transcript window for conversational grounding.
	Context string
	// Patterns are example phrasings the reply may draw from.
	Patterns []string
	// AvoidLines are recent agent messages whose openers must not be reused.
	AvoidLines []string
	// Gender of the user when known, for address-term register.
	Gender string
	// AllowSplit permits a multi-segment reply (one segment per line).
	AllowSplit bool
}

// Reply is composed outbound text, split into send-ready segments.
type Reply struct {
	Segments []string
}

// Composer renders a directive into persona-voiced outbound text.
// Implementations must degrade gracefully: on oracle failure they return the
// fallback reply, never an error.
type Composer interface {
	Compose(ctx context.Context, d Directive) Reply
	// FallbackReply is the fixed in-persona reply used when composition
	// fails.
	FallbackReply() Reply
}

// SlotProvider supplies call-booking slot suggestions for qualified leads.
type SlotProvider interface {
	GetAvailableSlots(ctx context.Context) ([]string, error)
}

// LeadSink receives qualified leads, typically a CRM adapter. It returns the
// booking link to hand to the user.
type LeadSink interface {
	CreateQualifiedLead(ctx context.Context, lead models.Lead) (string, error)
}

// Notifier alerts a human operator about conversations needing attention.
type Notifier interface {
	NotifyEscalation(ctx context.Context, conversationID, lastUserMessage string) error
	NotifyQualifiedLead(ctx context.Context, lead models.Lead) error
}
