package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bmblueprint/dmagent/internal/models"
)

// Reprompt counter keys. Each qualification question tracks its own budget.
const (
	repromptKeyQ1 = "Q1"
	repromptKeyQ2 = "Q2"
)

// AnsweringQ1 handles the program-awareness question. Counter-questions and
// off-topic replies burn a reprompt; once the budget is gone the funnel
// moves forward with whatever was said. Low understanding gets the short
// program explainer woven in before the portfolio question.
func (h *Handlers) AnsweringQ1(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	cls := h.classifier.Classify(ctx, st.LastQuestionAsked, userMsg)
	attempts := st.RepromptAttempts[repromptKeyQ1]

	if cls.Kind != ClassAnswered && attempts < h.maxReprompts {
		var intent string
		switch cls.Kind {
		case ClassQuestion:
			intent = "briefly answer their question, then steer back and re-ask what they know about the Bull Market Blueprint"
		default:
			intent = "acknowledge what they said lightly, then steer back and re-ask what they know about the Bull Market Blueprint"
		}
		reply := h.compose(ctx, st, Directive{
			Intent:      intent,
			UserMessage: userMsg,
			Context:     convContext,
			AllowSplit:  true,
		})
		d := replyDelta(reply, models.StageAnsweringQ1)
		d.RepromptAttempts = map[string]int{repromptKeyQ1: attempts + 1}
		return d
	}

	understanding := cls.Content
	intent := "acknowledge their take on the program, then ask roughly what their crypto portfolio is sitting at right now, rough number is fine"
	if lowUnderstanding(understanding) {
		intent = "give them the quick program explainer: " + bmbExplanation +
			" .. then ask roughly what their crypto portfolio is sitting at right now, rough number is fine"
	}
	reply := h.compose(ctx, st, Directive{
		Intent:      intent,
		UserMessage: userMsg,
		Context:     convContext,
		Patterns:    h.persona.AckPatterns,
		AllowSplit:  true,
	})
	d := replyDelta(reply, models.StageAnsweringQ2)
	d.Answers = map[string]any{models.AnswerQ1Understanding: understanding}
	return d
}

// AnsweringQ2 handles the portfolio-size question, the qualification
// decision point. A recovered amount at or above the threshold qualifies the
// lead and opens the pain-point question; below it, or after the reprompt
// budget runs out with nothing recoverable, the lead goes to nurture.
func (h *Handlers) AnsweringQ2(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	cls := h.classifier.ClassifyNumeric(ctx, st.LastQuestionAsked, userMsg)
	attempts := st.RepromptAttempts[repromptKeyQ2]

	var amount int64
	var ok bool
	if cls.Kind == ClassAnswered {
		amount, ok = h.extractor.ParsePortfolioSize(ctx, cls.Content)
	}

	if !ok {
		if attempts < h.maxReprompts {
			var intent string
			if cls.Kind == ClassQuestion {
				intent = "briefly answer their question, then re-ask for a rough portfolio number, even a ballpark works"
			} else {
				intent = "keep it light, no pressure, but re-ask for a rough portfolio number, even a ballpark works"
			}
			reply := h.compose(ctx, st, Directive{
				Intent:      intent,
				UserMessage: userMsg,
				Context:     convContext,
				AllowSplit:  true,
			})
			d := replyDelta(reply, models.StageAnsweringQ2)
			d.RepromptAttempts = map[string]int{repromptKeyQ2: attempts + 1}
			return d
		}
		// Budget exhausted with no recoverable amount: treat as unqualified.
		slog.Info("Handlers.AnsweringQ2: reprompt budget exhausted, routing to nurture",
			"conversationID", st.ConversationID, "attempts", attempts)
		d := replyDelta(NewReply(nurtureMessage), models.StageNurture)
		q := false
		d.IsQualified = &q
		d.Answers = map[string]any{
			models.AnswerQ2PortfolioSize: userMsg,
			models.AnswerNurtureSent:     true,
		}
		return d
	}

	qualified := amount >= h.qualificationThreshold
	slog.Info("Handlers.AnsweringQ2: qualification decision",
		"conversationID", st.ConversationID, "amountUSD", amount, "qualified", qualified)

	answers := map[string]any{
		models.AnswerQ2PortfolioSize: cls.Content,
		models.AnswerQ2PortfolioUSD:  amount,
	}

	if !qualified {
		d := replyDelta(NewReply(nurtureMessage), models.StageNurture)
		q := false
		d.IsQualified = &q
		answers[models.AnswerNurtureSent] = true
		d.Answers = answers
		return d
	}

	reply := h.compose(ctx, st, Directive{
		Intent:      "open with something like '" + qualifiedAck + "', then ask what their biggest struggle with crypto has been so far",
		UserMessage: userMsg,
		Context:     convContext,
		AllowSplit:  true,
	})
	d := replyDelta(reply, models.StageAnsweringQ3)
	q := true
	d.IsQualified = &q
	d.Answers = answers
	return d
}

// AnsweringQ3 records the qualified lead's pain points, fetches booking slot
// suggestions, and asks for the best email to send the call invite to.
func (h *Handlers) AnsweringQ3(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	cls := h.classifier.Classify(ctx, st.LastQuestionAsked, userMsg)

	var slots []string
	if h.slots != nil {
		var err error
		slots, err = h.slots.GetAvailableSlots(ctx)
		if err != nil {
			slog.Warn("Handlers.AnsweringQ3: slot lookup failed, offering call without times",
				"conversationID", st.ConversationID, "error", err)
			slots = nil
		}
	}

	intent := "empathize with their struggle, say a quick call with the team would sort exactly that, and ask for the best email to send the invite to"
	if len(slots) > 0 {
		intent += " .. mention these times work: " + strings.Join(slots, ", ")
	}
	reply := h.compose(ctx, st, Directive{
		Intent:      intent,
		UserMessage: userMsg,
		Context:     convContext,
		Patterns:    h.persona.AckPatterns,
		AllowSplit:  true,
	})
	d := replyDelta(reply, models.StageCollectEmail)
	d.Answers = map[string]any{models.AnswerQ3PainPoints: cls.Content}
	d.AvailableSlots = slots
	return d
}

// lowUnderstanding spots program-awareness answers that warrant the short
// explainer before moving on.
func lowUnderstanding(answer string) bool {
	a := strings.ToLower(answer)
	if len(strings.Fields(a)) <= 3 {
		return true
	}
	for _, m := range []string{"not much", "nothing", "no idea", "not really", "don't know", "dont know", "tell me", "what is"} {
		if strings.Contains(a, m) {
			return true
		}
	}
	return false
}
