// Package models defines the conversation state aggregate and stage machine
// shared across dmagent components.
package models

// Stage identifies a position in the qualification conversation.
type Stage string

// The closed set of conversation stages. Handlers emit transitions between
// these values; StageRegistry documents which transitions are legal.
const (
	StageGreeting         Stage = "greeting"
	StageRapportBuilding  Stage = "rapport_building"
	StageLocationResponse Stage = "location_response"
	StageCryptoInterest   Stage = "crypto_interest_questions"
	StageAnsweringQ1      Stage = "answering_Q1"
	StageAnsweringQ2      Stage = "answering_Q2"
	StageAnsweringQ3      Stage = "answering_Q3"
	StageCollectEmail     Stage = "collect_email"
	StageNurture          Stage = "nurture"
	StageHumanOverride    Stage = "human_override"
	StageEnd              Stage = "end"
)

// AllStages lists every stage in funnel order, side branches last.
func AllStages() []Stage {
	return []Stage{
		StageGreeting,
		StageRapportBuilding,
		StageLocationResponse,
		StageCryptoInterest,
		StageAnsweringQ1,
		StageAnsweringQ2,
		StageAnsweringQ3,
		StageCollectEmail,
		StageNurture,
		StageHumanOverride,
		StageEnd,
	}
}

// stageTransitions documents the legal forward edges of the stage graph.
// Self-transitions (reprompt cycles) and escalation to StageHumanOverride are
// legal from every stage and are not listed.
var stageTransitions = map[Stage][]Stage{
	// Greeting delegates the first real message to the rapport handler, so
	// it inherits rapport's exits (including the lifestyle-follower farewell)
	// on top of the nominal hop to rapport_building.
	StageGreeting:         {StageRapportBuilding, StageLocationResponse, StageEnd},
	StageRapportBuilding:  {StageLocationResponse, StageEnd},
	StageLocationResponse: {StageCryptoInterest},
	StageCryptoInterest:   {StageAnsweringQ1},
	StageAnsweringQ1:      {StageAnsweringQ2},
	StageAnsweringQ2:      {StageAnsweringQ3, StageNurture},
	StageAnsweringQ3:      {StageCollectEmail},
	StageCollectEmail:     {StageEnd},
	StageNurture:          {StageEnd},
	StageHumanOverride:    {},
	StageEnd:              {},
}

// Valid reports whether s is a member of the closed stage set.
func (s Stage) Valid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// Terminal reports whether s ends the automated conversation. Nurture is
// effectively terminal too but carries one guarded hop to StageEnd, so it is
// not listed here.
func (s Stage) Terminal() bool {
	return s == StageEnd || s == StageHumanOverride
}

// CanTransition reports whether moving from one stage to another is legal.
// Staying on the same stage (reprompt) and escalating to human_override are
// always legal.
func CanTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to || to == StageHumanOverride {
		return true
	}
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
