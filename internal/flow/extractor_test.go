package flow

import (
	"context"
	"fmt"
	"testing"
)

func TestParsePortfolioSizeLocal(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"75k", 75_000},
		{"about 75K in alts", 75_000},
		{"1.5m", 1_500_000},
		{"maybe 2M total", 2_000_000},
		{"120,000", 120_000},
		{"$50,000 roughly", 50_000},
		{"sitting at 300", 300},
		{"2.5k", 2_500},
	}
	// No scripted responses: the local parser must never reach the oracle.
	e := NewOracleExtractor(&mockGenAI{err: fmt.Errorf("should not be called")})
	for _, tc := range cases {
		got, ok := e.ParsePortfolioSize(context.Background(), tc.text)
		if !ok {
			t.Errorf("ParsePortfolioSize(%q) found no amount", tc.text)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePortfolioSize(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestParsePortfolioSizeWordedAmountViaOracle(t *testing.T) {
	e := NewOracleExtractor(&mockGenAI{responses: []string{"50000"}})
	got, ok := e.ParsePortfolioSize(context.Background(), "fifty grand give or take")
	if !ok || got != 50_000 {
		t.Errorf("ParsePortfolioSize = %d, %v, want 50000, true", got, ok)
	}
}

func TestParsePortfolioSizeNoAmount(t *testing.T) {
	cases := []struct {
		name string
		mock *mockGenAI
	}{
		{"declined", &mockGenAI{responses: []string{"NONE"}}},
		{"oracle error", &mockGenAI{err: fmt.Errorf("timeout")}},
		{"garbage output", &mockGenAI{responses: []string{"a fair amount"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewOracleExtractor(tc.mock)
			if _, ok := e.ParsePortfolioSize(context.Background(), "rather not say"); ok {
				t.Error("expected no amount")
			}
		})
	}
}

func TestExtractLocation(t *testing.T) {
	e := NewOracleExtractor(&mockGenAI{responses: []string{`"Lisbon"`}})
	if got := e.ExtractLocation(context.Background(), "lisbon mostly, sometimes madrid"); got != "Lisbon" {
		t.Errorf("ExtractLocation = %q", got)
	}
}

func TestExtractLocationFallsBackToOriginal(t *testing.T) {
	cases := []struct {
		name string
		mock *mockGenAI
	}{
		{"none found", &mockGenAI{responses: []string{"NONE"}}},
		{"oracle error", &mockGenAI{err: fmt.Errorf("timeout")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewOracleExtractor(tc.mock)
			if got := e.ExtractLocation(context.Background(), "here and there"); got != "here and there" {
				t.Errorf("ExtractLocation = %q, want original text", got)
			}
		})
	}
}

func TestCheckHighSpecificity(t *testing.T) {
	cases := []struct {
		name string
		mock *mockGenAI
		want bool
	}{
		{"yes", &mockGenAI{responses: []string{"YES"}}, true},
		{"yes with noise", &mockGenAI{responses: []string{"yes, clearly"}}, true},
		{"no", &mockGenAI{responses: []string{"NO"}}, false},
		{"oracle error fails open to no", &mockGenAI{err: fmt.Errorf("timeout")}, false},
		{"garbage fails open to no", &mockGenAI{responses: []string{"unsure"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewOracleExtractor(tc.mock)
			got := e.CheckHighSpecificity(context.Background(), "how's it going?", "should I sell my ETH to cover my tax bill")
			if got != tc.want {
				t.Errorf("CheckHighSpecificity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSpecificityCriteriaOverride(t *testing.T) {
	mock := &mockGenAI{responses: []string{"NO"}}
	e := NewOracleExtractor(mock, WithSpecificityCriteria("Escalate only refund requests."))
	e.CheckHighSpecificity(context.Background(), "q?", "reply")
	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 oracle call, got %d", len(mock.calls))
	}
	if got := mock.calls[0].system; got[:len("Escalate only refund requests.")] != "Escalate only refund requests." {
		t.Errorf("system prompt does not start with custom criteria: %q", got)
	}
}
