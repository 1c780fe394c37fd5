package flow

import (
	"fmt"
	"strings"
)

// PersonaConfig pins down the voice every composed reply speaks in. It is
// explicit configuration rather than prompt-buried prose so deployments can
// swap the persona without editing composer internals.
type PersonaConfig struct {
	// Name the agent goes by in the conversation.
	Name string
	// Description is the long-form voice brief injected into every
	// composition prompt.
	Description string
	// GreetingPatterns are example openers for the very first message.
	GreetingPatterns []string
	// AckPatterns are example acknowledgment openers for mid-funnel replies.
	AckPatterns []string
	// RepromptWindow is how many recent agent messages are checked for
	// opener reuse.
	RepromptWindow int
}

// DefaultPersona is the Luke voice used in production DMs.
func DefaultPersona() PersonaConfig {
	return PersonaConfig{
		Name: "Luke",
		Description: `You are Luke, a laid-back crypto mentor chatting over Instagram DMs.
Voice rules:
- lowercase, casual, short messages like real DMs
- warm and direct, never salesy or corporate
- occasional emoji (🙏🏻 🔥 💪) but at most one per message
- never use exclamation marks in back-to-back messages
- you talk about the Bull Market Blueprint program when asked, plainly and briefly
- one question at a time, always end with the question you need answered`,
		GreetingPatterns: []string{
			"hey brother 🙏🏻 saw you checking out the content, how's your day going?",
			"yo! appreciate you reaching out man, how's everything on your end?",
			"hey hey, good to see you here 🙏🏻 how's your day been?",
		},
		AckPatterns: []string{
			"love that",
			"got you",
			"that's solid man",
			"appreciate you sharing that",
			"okay okay, i hear you",
		},
		RepromptWindow: 3,
	}
}

// bmbExplanation is the short program explainer woven in when the user shows
// little understanding at the program-awareness question.
const bmbExplanation = `quick version: the Bull Market Blueprint is our mentorship where we show you exactly how we position for the bull run, live trade reviews, weekly calls, the whole playbook`

// nurtureMessage is the fixed unqualified-path sendoff pointing at free
// content.
const nurtureMessage = `all good man, honestly the best move right now is to stack knowledge first 🙏🏻 start with the free trainings on our youtube, everything you need to grow that bag is there: https://youtube.com/@bullmarketblueprint
come back when you're ready, door's always open`

// qualifiedAck opens the booking handoff once a lead clears the threshold.
const qualifiedAck = "let's go! you sound like a perfect fit for what we do brother"

// farewellMessage closes out a finished conversation exactly once.
const farewellMessage = "appreciate you man, i'm around if anything comes up 🙏🏻"

// composerFallbackText is the fixed in-persona reply used when composition
// fails. It buys time without advancing the funnel off bad output.
const composerFallbackText = "got you brother, give me one sec 🙏🏻"

// BuildPersonaPrompt renders the persona into the system-prompt preamble used
// for reply composition.
func BuildPersonaPrompt(p PersonaConfig, gender string) string {
	var b strings.Builder
	b.WriteString(p.Description)
	b.WriteString("\n")
	switch strings.ToLower(gender) {
	case "male":
		b.WriteString("The user is male; terms like 'brother' and 'man' fit.\n")
	case "female":
		b.WriteString("The user is female; skip 'brother'/'man', keep it warm and neutral.\n")
	default:
		b.WriteString("The user's gender is unknown; prefer neutral friendly terms over 'brother'.\n")
	}
	return b.String()
}

// openerOf returns the normalized opening clause of an agent line, used to
// detect repeated acknowledgment phrasing across consecutive messages.
func openerOf(line string) string {
	line = strings.ToLower(strings.TrimSpace(line))
	if i := strings.IndexAny(line, ",.!\n"); i >= 0 {
		line = line[:i]
	}
	words := strings.Fields(line)
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ")
}

// formatPatterns renders example phrasings as a prompt bullet list.
func formatPatterns(patterns []string) string {
	var b strings.Builder
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return b.String()
}
