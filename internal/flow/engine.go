package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bmblueprint/dmagent/internal/models"
)

// Engine drives one conversation turn end to end: append the incoming
// message, run the escalation check, dispatch the stage handler, and merge
// the resulting delta. It holds no per-conversation state of its own, so one
// engine serves all conversations concurrently.
type Engine struct {
	handlers  *Handlers
	extractor Extractor
	notifier  Notifier

	contextWindow int
	agentLabel    string
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithContextWindow overrides how many transcript messages are passed to the
// oracles for grounding.
func WithContextWindow(n int) EngineOption {
	return func(e *Engine) { e.contextWindow = n }
}

// NewEngine wires the turn loop to the stage handlers. The extractor and
// notifier are shared with the handlers; the engine uses them for the
// escalation check that runs before any stage dispatch.
func NewEngine(handlers *Handlers, extractor Extractor, notifier Notifier, opts ...EngineOption) *Engine {
	e := &Engine{
		handlers:      handlers,
		extractor:     extractor,
		notifier:      notifier,
		contextWindow: 6,
		agentLabel:    handlers.persona.Name,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTurn advances the conversation by one turn and returns the updated
// state plus the outbound reply text (empty when the agent stays silent).
// incoming is nil only on the very first turn, which produces the opener.
func (e *Engine) ProcessTurn(ctx context.Context, st *models.ConversationState, incoming *string) (*models.ConversationState, string, error) {
	if st == nil {
		return nil, "", fmt.Errorf("conversation state required")
	}
	if st.ConversationID == "" {
		return nil, "", fmt.Errorf("conversation id required")
	}
	st.Response = ""

	firstTurn := len(st.Messages) == 0
	userMsg := ""
	if incoming != nil {
		userMsg = strings.TrimSpace(*incoming)
	}
	if userMsg == "" && !firstTurn {
		return nil, "", fmt.Errorf("empty user message on continuation turn")
	}
	if userMsg != "" {
		st.Apply(models.StateDelta{Messages: []models.Message{
			{Role: models.RoleHuman, Content: userMsg, Timestamp: time.Now()},
		}})
	}

	slog.Debug("Engine.ProcessTurn: turn started",
		"conversationID", st.ConversationID, "stage", st.Stage, "firstTurn", firstTurn)

	// Escalation preempts everything except an already-escalated
	// conversation.
	if userMsg != "" && st.Stage != models.StageHumanOverride &&
		e.extractor.CheckHighSpecificity(ctx, st.LastQuestionAsked, userMsg) {
		slog.Info("Engine.ProcessTurn: high-specificity reply, escalating to human",
			"conversationID", st.ConversationID, "stage", st.Stage)
		yes := true
		empty := ""
		st.Apply(models.StateDelta{
			Stage:          models.StageHumanOverride,
			ClearQualified: true,
			IsSpecific:     &yes,
			Response:       &empty,
		})
		if e.notifier != nil {
			if err := e.notifier.NotifyEscalation(ctx, st.ConversationID, userMsg); err != nil {
				slog.Warn("Engine.ProcessTurn: escalation notification failed",
					"conversationID", st.ConversationID, "error", err)
			}
		}
		return st, "", nil
	}

	prev := st.Stage
	delta := e.dispatch(ctx, st, userMsg, e.transcript(st))
	if delta.Stage != "" && !models.CanTransition(prev, delta.Stage) {
		slog.Warn("Engine.ProcessTurn: handler produced illegal transition",
			"conversationID", st.ConversationID, "from", prev, "to", delta.Stage)
	}
	st.Apply(delta)

	slog.Debug("Engine.ProcessTurn: turn finished",
		"conversationID", st.ConversationID, "stage", st.Stage, "replyLength", len(st.Response))
	return st, st.Response, nil
}

// dispatch routes to the stage handler. The switch is exhaustive over the
// stage enum; an unknown stage (e.g. from a hand-edited stored state) holds
// the conversation silent rather than guessing.
func (e *Engine) dispatch(ctx context.Context, st *models.ConversationState, userMsg, convContext string) models.StateDelta {
	h := e.handlers
	switch st.Stage {
	case models.StageGreeting:
		return h.Greeting(ctx, st, userMsg, convContext)
	case models.StageRapportBuilding:
		return h.RapportBuilding(ctx, st, userMsg, convContext)
	case models.StageLocationResponse:
		return h.LocationResponse(ctx, st, userMsg, convContext)
	case models.StageCryptoInterest:
		return h.CryptoInterest(ctx, st, userMsg, convContext)
	case models.StageAnsweringQ1:
		return h.AnsweringQ1(ctx, st, userMsg, convContext)
	case models.StageAnsweringQ2:
		return h.AnsweringQ2(ctx, st, userMsg, convContext)
	case models.StageAnsweringQ3:
		return h.AnsweringQ3(ctx, st, userMsg, convContext)
	case models.StageCollectEmail:
		return h.CollectEmail(ctx, st, userMsg, convContext)
	case models.StageNurture:
		return h.Nurture(ctx, st, userMsg, convContext)
	case models.StageHumanOverride:
		return h.HumanOverride(ctx, st, userMsg, convContext)
	case models.StageEnd:
		return h.End(ctx, st, userMsg, convContext)
	default:
		slog.Error("Engine.dispatch: unknown stage, holding conversation",
			"conversationID", st.ConversationID, "stage", st.Stage)
		empty := ""
		return models.StateDelta{Response: &empty}
	}
}

// transcript renders the last few messages for oracle grounding.
func (e *Engine) transcript(st *models.ConversationState) string {
	msgs := st.Messages
	if len(msgs) > e.contextWindow {
		msgs = msgs[len(msgs)-e.contextWindow:]
	}
	var b strings.Builder
	for _, m := range msgs {
		label := "User"
		if m.Role == models.RoleAgent {
			label = e.agentLabel
		}
		fmt.Fprintf(&b, "%s: %s\n", label, m.Content)
	}
	return b.String()
}
