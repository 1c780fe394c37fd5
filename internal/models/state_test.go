package models

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestApplyAppendsMessages(t *testing.T) {
	st := NewConversationState("c1")
	st.Apply(StateDelta{Messages: []Message{{Role: RoleAgent, Content: "hey", Timestamp: time.Now()}}})
	st.Apply(StateDelta{Messages: []Message{
		{Role: RoleHuman, Content: "hi", Timestamp: time.Now()},
		{Role: RoleAgent, Content: "where you based?", Timestamp: time.Now()},
	}})

	if len(st.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(st.Messages))
	}
	if st.Messages[0].Content != "hey" || st.Messages[2].Content != "where you based?" {
		t.Errorf("message order not chronological: %+v", st.Messages)
	}
}

func TestApplyUpsertsAnswersWithoutDeletion(t *testing.T) {
	st := NewConversationState("c1")
	st.Apply(StateDelta{Answers: map[string]any{AnswerIntent: "crypto"}})
	st.Apply(StateDelta{Answers: map[string]any{AnswerQ2PortfolioSize: "75k"}})
	st.Apply(StateDelta{Answers: map[string]any{AnswerQ2PortfolioSize: "80k"}})

	if got := st.AnswerString(AnswerIntent); got != "crypto" {
		t.Errorf("earlier answer lost: %q", got)
	}
	if got := st.AnswerString(AnswerQ2PortfolioSize); got != "80k" {
		t.Errorf("answer not overwritten: %q", got)
	}
}

func TestApplyScalarReplacement(t *testing.T) {
	st := NewConversationState("c1")
	st.Apply(StateDelta{Stage: StageAnsweringQ2, LastQuestionAsked: strPtr("what's your portfolio at?"), Location: strPtr("London")})

	if st.Stage != StageAnsweringQ2 {
		t.Errorf("stage = %q", st.Stage)
	}
	if st.LastQuestionAsked != "what's your portfolio at?" {
		t.Errorf("lastQuestionAsked = %q", st.LastQuestionAsked)
	}

	// Empty stage in a delta leaves the current stage untouched.
	st.Apply(StateDelta{Location: strPtr("Dubai")})
	if st.Stage != StageAnsweringQ2 {
		t.Errorf("stage changed by empty delta field: %q", st.Stage)
	}
	if st.Location != "Dubai" {
		t.Errorf("location not replaced: %q", st.Location)
	}
}

func TestApplyQualifiedTriState(t *testing.T) {
	st := NewConversationState("c1")
	if st.IsQualified != nil {
		t.Fatal("new state should have unset qualification")
	}

	st.Apply(StateDelta{IsQualified: boolPtr(true)})
	if st.IsQualified == nil || !*st.IsQualified {
		t.Fatal("qualification should be true")
	}

	st.Apply(StateDelta{ClearQualified: true})
	if st.IsQualified != nil {
		t.Fatal("ClearQualified should reset the tri-state to unset")
	}
}

func TestApplyRepromptUpsert(t *testing.T) {
	st := NewConversationState("c1")
	st.Apply(StateDelta{RepromptAttempts: map[string]int{"Q2": 1}})
	st.Apply(StateDelta{RepromptAttempts: map[string]int{"Q2": 2, "Q1": 1}})

	if st.RepromptAttempts["Q2"] != 2 || st.RepromptAttempts["Q1"] != 1 {
		t.Errorf("reprompt counters wrong: %v", st.RepromptAttempts)
	}
}

func TestLastUserMessage(t *testing.T) {
	st := NewConversationState("c1")
	if got := st.LastUserMessage(); got != "" {
		t.Errorf("empty state should have no user message, got %q", got)
	}
	st.Apply(StateDelta{Messages: []Message{
		{Role: RoleAgent, Content: "hey"},
		{Role: RoleHuman, Content: "hi there"},
		{Role: RoleAgent, Content: "where you based?"},
	}})
	if got := st.LastUserMessage(); got != "hi there" {
		t.Errorf("LastUserMessage = %q", got)
	}
}

func TestRecentAgentLines(t *testing.T) {
	st := NewConversationState("c1")
	st.Apply(StateDelta{Messages: []Message{
		{Role: RoleAgent, Content: "one"},
		{Role: RoleHuman, Content: "x"},
		{Role: RoleAgent, Content: "two"},
		{Role: RoleAgent, Content: "three"},
	}})
	lines := st.RecentAgentLines(2)
	if len(lines) != 2 || lines[0] != "two" || lines[1] != "three" {
		t.Errorf("RecentAgentLines = %v", lines)
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	st := NewConversationState("c1")
	st.Apply(StateDelta{
		Stage:       StageAnsweringQ3,
		Answers:     map[string]any{AnswerQ2PortfolioUSD: int64(75000), AnswerIntent: "crypto"},
		IsQualified: boolPtr(true),
		Messages:    []Message{{Role: RoleHuman, Content: "about 75k", Timestamp: time.Now()}},
	})

	data, err := st.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var restored ConversationState
	if err := restored.FromJSON(data); err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if restored.Stage != StageAnsweringQ3 {
		t.Errorf("stage = %q", restored.Stage)
	}
	if restored.IsQualified == nil || !*restored.IsQualified {
		t.Error("qualification lost in round trip")
	}
	if n, ok := restored.AnswerInt(AnswerQ2PortfolioUSD); !ok || n != 75000 {
		t.Errorf("AnswerInt after round trip = %d, %v", n, ok)
	}
	if len(restored.Messages) != 1 {
		t.Errorf("messages lost: %d", len(restored.Messages))
	}
}
