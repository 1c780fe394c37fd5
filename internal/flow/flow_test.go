package flow

import (
	"context"
	"fmt"

	"github.com/bmblueprint/dmagent/internal/models"

	"github.com/openai/openai-go"
)

// mockGenAI is a scripted oracle client. Responses are served in order, with
// the last one repeating; a non-nil err fails every call.
type mockGenAI struct {
	responses []string
	err       error

	calls []mockCall
}

type mockCall struct {
	system string
	user   string
}

func (m *mockGenAI) GeneratePromptWithContext(ctx context.Context, system, user string) (string, error) {
	m.calls = append(m.calls, mockCall{system: system, user: user})
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("mockGenAI: no scripted responses")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return m.GeneratePromptWithContext(ctx, "", "")
}

// fakeClassifier serves scripted verdicts in order, repeating the last one.
type fakeClassifier struct {
	results []Classification
}

func (f *fakeClassifier) next(reply string) Classification {
	if len(f.results) == 0 {
		return Classification{Kind: ClassAnswered, Content: reply}
	}
	c := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return c
}

func (f *fakeClassifier) Classify(ctx context.Context, question, reply string) Classification {
	return f.next(reply)
}

func (f *fakeClassifier) ClassifyNumeric(ctx context.Context, question, reply string) Classification {
	return f.next(reply)
}

// fakeExtractor returns fixed extraction results.
type fakeExtractor struct {
	location string
	amount   int64
	ok       bool
	specific bool
}

func (f *fakeExtractor) ExtractLocation(ctx context.Context, text string) string {
	if f.location == "" {
		return text
	}
	return f.location
}

func (f *fakeExtractor) ParsePortfolioSize(ctx context.Context, text string) (int64, bool) {
	return f.amount, f.ok
}

func (f *fakeExtractor) CheckHighSpecificity(ctx context.Context, question, reply string) bool {
	return f.specific
}

// fakeComposer echoes the directive intent so tests can assert which reply
// was requested without an oracle.
type fakeComposer struct {
	directives []Directive
}

func (f *fakeComposer) Compose(ctx context.Context, d Directive) Reply {
	f.directives = append(f.directives, d)
	return Reply{Segments: []string{"[" + d.Intent + "]"}}
}

func (f *fakeComposer) FallbackReply() Reply {
	return Reply{Segments: []string{composerFallbackText}}
}

type fakeSlots struct {
	slots []string
	err   error
}

func (f *fakeSlots) GetAvailableSlots(ctx context.Context) ([]string, error) {
	return f.slots, f.err
}

type fakeLeads struct {
	link  string
	err   error
	leads []models.Lead
}

func (f *fakeLeads) CreateQualifiedLead(ctx context.Context, lead models.Lead) (string, error) {
	f.leads = append(f.leads, lead)
	return f.link, f.err
}

type fakeNotifier struct {
	escalations int
	qualified   int
}

func (f *fakeNotifier) NotifyEscalation(ctx context.Context, conversationID, lastUserMessage string) error {
	f.escalations++
	return nil
}

func (f *fakeNotifier) NotifyQualifiedLead(ctx context.Context, lead models.Lead) error {
	f.qualified++
	return nil
}

// testRig bundles the fakes behind a fully wired handler set.
type testRig struct {
	classifier *fakeClassifier
	extractor  *fakeExtractor
	composer   *fakeComposer
	slots      *fakeSlots
	leads      *fakeLeads
	notifier   *fakeNotifier
	handlers   *Handlers
	engine     *Engine
}

func newTestRig(opts ...HandlerOption) *testRig {
	r := &testRig{
		classifier: &fakeClassifier{},
		extractor:  &fakeExtractor{},
		composer:   &fakeComposer{},
		slots:      &fakeSlots{slots: []string{"tomorrow 10am", "tomorrow 2pm"}},
		leads:      &fakeLeads{link: "https://cal.example.com/bmb"},
		notifier:   &fakeNotifier{},
	}
	r.handlers = NewHandlers(r.classifier, r.extractor, r.composer, r.slots, r.leads, r.notifier, opts...)
	r.engine = NewEngine(r.handlers, r.extractor, r.notifier)
	return r
}

func stateAt(stage models.Stage) *models.ConversationState {
	st := models.NewConversationState("conv-1")
	st.Apply(models.StateDelta{
		Stage: stage,
		Messages: []models.Message{
			{Role: models.RoleAgent, Content: "earlier question?"},
		},
		LastQuestionAsked: strPtr("earlier question?"),
	})
	return st
}

func strPtr(s string) *string { return &s }
