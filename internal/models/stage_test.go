package models

import "testing"

func TestStageValid(t *testing.T) {
	for _, s := range AllStages() {
		if !s.Valid() {
			t.Errorf("stage %q should be valid", s)
		}
	}
	if Stage("booking_confirmed").Valid() {
		t.Error("unknown stage should not be valid")
	}
}

func TestTerminalStages(t *testing.T) {
	for _, s := range AllStages() {
		want := s == StageEnd || s == StageHumanOverride
		if got := s.Terminal(); got != want {
			t.Errorf("Terminal(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestCanTransitionFunnelOrder(t *testing.T) {
	funnel := []Stage{
		StageGreeting, StageRapportBuilding, StageLocationResponse,
		StageCryptoInterest, StageAnsweringQ1, StageAnsweringQ2,
		StageAnsweringQ3, StageCollectEmail, StageEnd,
	}
	for i := 0; i < len(funnel)-1; i++ {
		if !CanTransition(funnel[i], funnel[i+1]) {
			t.Errorf("transition %s -> %s should be legal", funnel[i], funnel[i+1])
		}
	}
}

func TestCanTransitionSelfAndEscalation(t *testing.T) {
	for _, s := range AllStages() {
		if !CanTransition(s, s) {
			t.Errorf("reprompt self-transition should be legal for %s", s)
		}
		if !CanTransition(s, StageHumanOverride) {
			t.Errorf("escalation should be legal from %s", s)
		}
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	cases := [][2]Stage{
		{StageGreeting, StageAnsweringQ2},
		{StageAnsweringQ2, StageCollectEmail},
		{StageEnd, StageGreeting},
		{StageHumanOverride, StageEnd},
		{StageNurture, StageAnsweringQ1},
	}
	for _, c := range cases {
		if CanTransition(c[0], c[1]) {
			t.Errorf("transition %s -> %s should be illegal", c[0], c[1])
		}
	}
}

func TestLifestyleExitFromGreeting(t *testing.T) {
	// The first real message arrives while still at greeting, so the
	// lifestyle farewell moves greeting straight to end.
	if !CanTransition(StageGreeting, StageEnd) {
		t.Error("greeting -> end should be legal")
	}
	if !CanTransition(StageRapportBuilding, StageEnd) {
		t.Error("rapport_building -> end should be legal")
	}
}

func TestUnqualifiedBranch(t *testing.T) {
	if !CanTransition(StageAnsweringQ2, StageNurture) {
		t.Error("Q2 -> nurture should be legal")
	}
	if !CanTransition(StageNurture, StageEnd) {
		t.Error("nurture -> end should be legal")
	}
}
