package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestComposeSplitsSegments(t *testing.T) {
	mock := &mockGenAI{responses: []string{"love that man\n\nso what's your portfolio sitting at?"}}
	c := NewComposer(mock, DefaultPersona())
	reply := c.Compose(context.Background(), Directive{Intent: "ask the portfolio question", AllowSplit: true})
	if len(reply.Segments) != 2 {
		t.Fatalf("segments = %v", reply.Segments)
	}
	if reply.LastSegment() != "so what's your portfolio sitting at?" {
		t.Errorf("LastSegment = %q", reply.LastSegment())
	}
}

func TestComposeJoinsWhenSplitDisallowed(t *testing.T) {
	mock := &mockGenAI{responses: []string{"hey\nhow's your day going?"}}
	c := NewComposer(mock, DefaultPersona())
	reply := c.Compose(context.Background(), Directive{Intent: "greet"})
	if len(reply.Segments) != 1 {
		t.Fatalf("segments = %v, want single segment", reply.Segments)
	}
	if reply.Segments[0] != "hey how's your day going?" {
		t.Errorf("joined segment = %q", reply.Segments[0])
	}
}

func TestComposeFallsBack(t *testing.T) {
	for name, mock := range map[string]*mockGenAI{
		"oracle error":     {err: fmt.Errorf("rate limited")},
		"empty completion": {responses: []string{"   "}},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewComposer(mock, DefaultPersona())
			reply := c.Compose(context.Background(), Directive{Intent: "anything"})
			if reply.Text() != composerFallbackText {
				t.Errorf("reply = %q, want fallback", reply.Text())
			}
		})
	}
}

func TestComposePromptCarriesAvoidLines(t *testing.T) {
	mock := &mockGenAI{responses: []string{"got it"}}
	c := NewComposer(mock, DefaultPersona())
	c.Compose(context.Background(), Directive{
		Intent:     "re-ask the question",
		AvoidLines: []string{"love that man, where you based?", "love that brother, how long in crypto?"},
	})
	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 oracle call, got %d", len(mock.calls))
	}
	if !strings.Contains(mock.calls[0].system, "love that man") {
		t.Errorf("system prompt missing recent openers:\n%s", mock.calls[0].system)
	}
}

func TestRecentOpenersDedupes(t *testing.T) {
	openers := recentOpeners([]string{
		"got you brother, one sec",
		"got you brother, here's the thing",
		"okay so, about the program",
	}, 3)
	if len(openers) != 2 {
		t.Fatalf("openers = %v, want 2 distinct", openers)
	}
}

func TestOpenerOf(t *testing.T) {
	cases := map[string]string{
		"Love that man, where you based?":           "love that man",
		"appreciate you sharing that brother! more": "appreciate you sharing that",
		"":    "",
		"ok.": "ok",
	}
	for in, want := range cases {
		if got := openerOf(in); got != want {
			t.Errorf("openerOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewReplyDropsBlankLines(t *testing.T) {
	r := NewReply("  first \n\n second\n   \n")
	if len(r.Segments) != 2 || r.Segments[0] != "first" || r.Segments[1] != "second" {
		t.Errorf("segments = %v", r.Segments)
	}
	if r.Text() != "first\nsecond" {
		t.Errorf("text = %q", r.Text())
	}
}
