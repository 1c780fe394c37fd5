package flow

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bmblueprint/dmagent/internal/models"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// CollectEmail waits for a usable email address, then pushes the lead to the
// CRM and hands over the booking link. Messages without an address get a
// re-ask; the stage has no budget since there is nowhere sensible to force
// forward to.
func (h *Handlers) CollectEmail(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	email := strings.ToLower(emailPattern.FindString(userMsg))
	if email == "" {
		reply := h.compose(ctx, st, Directive{
			Intent:      "keep it casual and ask again for the email to send the call invite to",
			UserMessage: userMsg,
			Context:     convContext,
		})
		return replyDelta(reply, models.StageCollectEmail)
	}

	lead := h.buildLead(st, email)
	var bookingLink string
	if h.leads != nil {
		var err error
		bookingLink, err = h.leads.CreateQualifiedLead(ctx, lead)
		if err != nil {
			slog.Error("Handlers.CollectEmail: CRM push failed, continuing without booking link",
				"conversationID", st.ConversationID, "error", err)
			bookingLink = ""
		}
	}
	if h.notifier != nil {
		if err := h.notifier.NotifyQualifiedLead(ctx, lead); err != nil {
			slog.Warn("Handlers.CollectEmail: operator notification failed",
				"conversationID", st.ConversationID, "error", err)
		}
	}

	intent := "confirm you got the email, say the invite is on its way, and close warmly"
	if bookingLink != "" {
		intent = "confirm you got the email and share the booking link so they can lock a time: " + bookingLink + " .. close warmly"
	}
	reply := h.compose(ctx, st, Directive{
		Intent:      intent,
		UserMessage: userMsg,
		Context:     convContext,
		AllowSplit:  true,
	})
	d := replyDelta(reply, models.StageEnd)
	d.Answers = map[string]any{
		models.AnswerEmail:        email,
		models.AnswerFarewellSent: true,
	}
	return d
}

func (h *Handlers) buildLead(st *models.ConversationState, email string) models.Lead {
	usd, _ := st.AnswerInt(models.AnswerQ2PortfolioUSD)
	return models.Lead{
		ConversationID:   st.ConversationID,
		FirstName:        st.FirstName,
		Username:         st.InstagramUsername,
		Email:            email,
		Location:         st.Location,
		PortfolioSizeUSD: usd,
		PainPoints:       st.AnswerString(models.AnswerQ3PainPoints),
		BMBUnderstanding: st.AnswerString(models.AnswerQ1Understanding),
		Source:           "instagram_dm",
	}
}
