package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// NewReply splits raw outbound text into send-ready segments, one per
// non-empty line.
func NewReply(text string) Reply {
	var segs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			segs = append(segs, line)
		}
	}
	return Reply{Segments: segs}
}

// Text joins the segments back into the single newline-delimited form stored
// on the conversation state.
func (r Reply) Text() string {
	return strings.Join(r.Segments, "\n")
}

// LastSegment returns the final segment, which by composition convention
// carries the question being asked.
func (r Reply) LastSegment() string {
	if len(r.Segments) == 0 {
		return ""
	}
	return r.Segments[len(r.Segments)-1]
}

// LLMComposer renders handler directives into persona-voiced replies via the
// generation oracle, falling back to a fixed in-persona line on any failure.
type LLMComposer struct {
	genAI   promptGenerator
	persona PersonaConfig
}

// promptGenerator is the slice of the oracle client the composer needs.
type promptGenerator interface {
	GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewComposer creates a composer speaking in the given persona.
func NewComposer(client promptGenerator, persona PersonaConfig) *LLMComposer {
	return &LLMComposer{genAI: client, persona: persona}
}

// Compose renders the directive into outbound text. Oracle failures and
// empty completions degrade to the fallback reply.
func (c *LLMComposer) Compose(ctx context.Context, d Directive) Reply {
	system := c.buildSystemPrompt(d)
	user := c.buildUserPrompt(d)

	raw, err := c.genAI.GeneratePromptWithContext(ctx, system, user)
	if err != nil {
		slog.Warn("LLMComposer.Compose: oracle failed, using fallback reply", "error", err, "intent", d.Intent)
		return c.FallbackReply()
	}
	text := strings.Trim(strings.TrimSpace(raw), `"`)
	if text == "" {
		slog.Warn("LLMComposer.Compose: empty completion, using fallback reply", "intent", d.Intent)
		return c.FallbackReply()
	}
	reply := NewReply(text)
	if !d.AllowSplit && len(reply.Segments) > 1 {
		reply = Reply{Segments: []string{strings.Join(reply.Segments, " ")}}
	}
	return reply
}

// FallbackReply is the fixed reply used when composition fails.
func (c *LLMComposer) FallbackReply() Reply {
	return Reply{Segments: []string{composerFallbackText}}
}

func (c *LLMComposer) buildSystemPrompt(d Directive) string {
	var b strings.Builder
	b.WriteString(BuildPersonaPrompt(c.persona, d.Gender))

	if len(d.Patterns) > 0 {
		b.WriteString("\nExample phrasings for this kind of message (vary them, never copy verbatim):\n")
		b.WriteString(formatPatterns(d.Patterns))
	}

	if openers := recentOpeners(d.AvoidLines, c.persona.RepromptWindow); len(openers) > 0 {
		b.WriteString("\nDo NOT open with any of these phrasings you used recently:\n")
		b.WriteString(formatPatterns(openers))
	}

	if d.AllowSplit {
		b.WriteString("\nYou may split the reply into at most 3 short messages, one per line. The question always goes in the last one.\n")
	} else {
		b.WriteString("\nReply with a single short message on one line.\n")
	}
	return b.String()
}

func (c *LLMComposer) buildUserPrompt(d Directive) string {
	var b strings.Builder
	if d.Context != "" {
		fmt.Fprintf(&b, "Recent conversation:\n%s\n\n", d.Context)
	}
	if d.UserMessage != "" {
		fmt.Fprintf(&b, "The user just said: %q\n\n", d.UserMessage)
	}
	fmt.Fprintf(&b, "Write the next message. It must: %s", d.Intent)
	return b.String()
}

// recentOpeners extracts the distinct opening clauses of the last n agent
// lines so the prompt can forbid reusing them.
func recentOpeners(lines []string, n int) []string {
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	seen := make(map[string]bool, len(lines))
	var openers []string
	for _, line := range lines {
		o := openerOf(line)
		if o != "" && !seen[o] {
			seen[o] = true
			openers = append(openers, o)
		}
	}
	return openers
}
