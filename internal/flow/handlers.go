package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bmblueprint/dmagent/internal/models"
)

// Handlers owns the per-stage turn logic. Each handler reads the state,
// consults the oracle ports it needs, and returns a StateDelta describing
// everything that changed this turn. Handlers never mutate the state they
// receive.
type Handlers struct {
	classifier Classifier
	extractor  Extractor
	composer   Composer
	slots      SlotProvider
	leads      LeadSink
	notifier   Notifier
	persona    PersonaConfig

	qualificationThreshold int64
	maxReprompts           int
}

// HandlerOption configures the stage handlers.
type HandlerOption func(*Handlers)

// WithQualificationThreshold overrides the USD portfolio size at or above
// which a lead qualifies.
func WithQualificationThreshold(usd int64) HandlerOption {
	return func(h *Handlers) { h.qualificationThreshold = usd }
}

// WithMaxReprompts overrides how many re-asks a question gets before the
// funnel forces forward.
func WithMaxReprompts(n int) HandlerOption {
	return func(h *Handlers) { h.maxReprompts = n }
}

// WithPersona overrides the default agent persona.
func WithPersona(p PersonaConfig) HandlerOption {
	return func(h *Handlers) { h.persona = p }
}

// NewHandlers wires the stage handlers to their ports. slots, leads, and
// notifier may be nil; the qualified path then degrades to link-less and
// silent variants.
func NewHandlers(classifier Classifier, extractor Extractor, composer Composer, slots SlotProvider, leads LeadSink, notifier Notifier, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		classifier:             classifier,
		extractor:              extractor,
		composer:               composer,
		slots:                  slots,
		leads:                  leads,
		notifier:               notifier,
		persona:                DefaultPersona(),
		qualificationThreshold: 50_000,
		maxReprompts:           2,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// replyDelta packages a composed reply as the common delta shape: append the
// agent message, move to next, remember the question asked, and surface the
// outbound text.
func replyDelta(reply Reply, next models.Stage) models.StateDelta {
	text := reply.Text()
	last := reply.LastSegment()
	return models.StateDelta{
		Messages:          []models.Message{{Role: models.RoleAgent, Content: text, Timestamp: time.Now()}},
		Stage:             next,
		LastQuestionAsked: &last,
		Response:          &text,
	}
}

// silentDelta moves stages without sending anything.
func silentDelta(next models.Stage) models.StateDelta {
	empty := ""
	return models.StateDelta{Stage: next, Response: &empty}
}

func (h *Handlers) compose(ctx context.Context, st *models.ConversationState, d Directive) Reply {
	d.Gender = st.Gender
	d.AvoidLines = st.RecentAgentLines(h.persona.RepromptWindow)
	return h.composer.Compose(ctx, d)
}

// Greeting opens the conversation. On the very first turn it sends the
// opener; once the user has replied it hands straight into rapport building.
func (h *Handlers) Greeting(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	if userMsg == "" {
		reply := h.compose(ctx, st, Directive{
			Intent:     "open the conversation warmly and ask how their day is going",
			Patterns:   h.persona.GreetingPatterns,
			Context:    convContext,
			AllowSplit: false,
		})
		return replyDelta(reply, models.StageGreeting)
	}
	return h.RapportBuilding(ctx, st, userMsg, convContext)
}

// RapportBuilding reads the user's first real message, persists the detected
// intent, and branches: lifestyle-only followers get a warm exit, everyone
// else gets the location question.
func (h *Handlers) RapportBuilding(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	intent := detectIntent(userMsg)
	slog.Debug("Handlers.RapportBuilding: intent detected", "conversationID", st.ConversationID, "intent", intent)

	if intent == "lifestyle" {
		reply := h.compose(ctx, st, Directive{
			Intent:      "thank them warmly for following the content, no pitch, wish them well and close out",
			UserMessage: userMsg,
			Context:     convContext,
		})
		d := replyDelta(reply, models.StageEnd)
		d.Answers = map[string]any{models.AnswerIntent: intent, models.AnswerFarewellSent: true}
		return d
	}

	intentNote := ""
	if cls := h.classifier.Classify(ctx, st.LastQuestionAsked, userMsg); cls.Kind == ClassQuestion {
		intentNote = "briefly answer their question first, then "
	}
	reply := h.compose(ctx, st, Directive{
		Intent:      intentNote + "acknowledge what they said and ask where they're based",
		UserMessage: userMsg,
		Context:     convContext,
		Patterns:    h.persona.AckPatterns,
		AllowSplit:  true,
	})
	d := replyDelta(reply, models.StageLocationResponse)
	d.Answers = map[string]any{models.AnswerIntent: intent}
	return d
}

// LocationResponse stores the user's location and moves to the crypto
// interest question.
func (h *Handlers) LocationResponse(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	location := h.extractor.ExtractLocation(ctx, userMsg)

	intentNote := ""
	if cls := h.classifier.Classify(ctx, st.LastQuestionAsked, userMsg); cls.Kind == ClassQuestion {
		intentNote = "answer their question first (you're based in Dubai), then "
	}
	reply := h.compose(ctx, st, Directive{
		Intent:      intentNote + "react to their location naturally and ask how long they've been into crypto and what got them started",
		UserMessage: userMsg,
		Context:     convContext,
		Patterns:    h.persona.AckPatterns,
		AllowSplit:  true,
	})
	d := replyDelta(reply, models.StageCryptoInterest)
	d.Location = &location
	d.Answers = map[string]any{models.AnswerLocation: location}
	return d
}

// CryptoInterest records the user's crypto background and asks the
// program-awareness question.
func (h *Handlers) CryptoInterest(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	cls := h.classifier.Classify(ctx, st.LastQuestionAsked, userMsg)

	intentNote := ""
	if cls.Kind == ClassQuestion {
		intentNote = "briefly answer their question first, then "
	}
	reply := h.compose(ctx, st, Directive{
		Intent:      intentNote + "acknowledge their crypto background and ask what they know about the Bull Market Blueprint so far",
		UserMessage: userMsg,
		Context:     convContext,
		Patterns:    h.persona.AckPatterns,
		AllowSplit:  true,
	})
	d := replyDelta(reply, models.StageAnsweringQ1)
	d.Answers = map[string]any{models.AnswerCryptoExperience: cls.Content}
	return d
}

// Nurture guards the unqualified sendoff: the referral message goes out
// exactly once, any later message just closes the conversation.
func (h *Handlers) Nurture(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	if st.AnswerString(models.AnswerNurtureSent) != "" {
		return silentDelta(models.StageEnd)
	}
	d := replyDelta(NewReply(nurtureMessage), models.StageNurture)
	q := false
	d.IsQualified = &q
	d.Answers = map[string]any{models.AnswerNurtureSent: true}
	return d
}

// HumanOverride holds the conversation for an operator. The agent stays
// silent and the qualification verdict is left to the human.
func (h *Handlers) HumanOverride(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	d := silentDelta(models.StageHumanOverride)
	d.ClearQualified = true
	return d
}

// End sends the farewell once, then stays silent on any further messages.
func (h *Handlers) End(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	if st.AnswerString(models.AnswerFarewellSent) != "" {
		return silentDelta(models.StageEnd)
	}
	d := replyDelta(NewReply(farewellMessage), models.StageEnd)
	d.Answers = map[string]any{models.AnswerFarewellSent: true}
	return d
}

// lifestyleMarkers and cryptoMarkers drive the cheap first-message intent
// split. Anything matching neither stays "ambiguous" and continues down the
// funnel.
var (
	lifestyleMarkers = []string{"lifestyle", "travel", "your posts", "your photos", "your life", "the vibe", "aesthetic"}
	cryptoMarkers    = []string{"crypto", "bitcoin", "btc", "eth", "trade", "trading", "invest", "portfolio", "blueprint", "bmb", "bull market", "money", "wealth", "profit"}
)

func detectIntent(text string) string {
	t := strings.ToLower(text)
	for _, m := range cryptoMarkers {
		if strings.Contains(t, m) {
			return "crypto"
		}
	}
	for _, m := range lifestyleMarkers {
		if strings.Contains(t, m) {
			return "lifestyle"
		}
	}
	return "ambiguous"
}
