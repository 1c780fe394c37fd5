package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bmblueprint/dmagent/internal/genai"
)

const classifySystemPrompt = `You classify how a user's DM reply relates to the question they were just asked.

Respond with exactly one line in the format TAG|content where TAG is one of:
ANSWERED - the reply addresses the question, even partially or vaguely. content is the answer, condensed.
QUESTION - the reply is primarily a question back to us. content is that question.
OFF_TOPIC - the reply ignores the question entirely. content is the user's text unchanged.

When in doubt between ANSWERED and anything else, prefer ANSWERED. Output nothing but the single line.`

const classifyNumericSystemPrompt = `You classify how a user's DM reply relates to a quantitative question they were just asked (an amount of money).

Respond with exactly one line in the format TAG|content where TAG is one of:
ANSWERED - the reply contains or implies an amount, however rough ("around 80k", "six figures", "like 20 grand"). content is the part stating the amount.
QUESTION - the reply is primarily a question back to us. content is that question.
NOT_ANSWERED - the reply stays on topic but gives no amount ("not much", "why do you ask", "enough"). content is the user's text unchanged.

Output nothing but the single line.`

// OracleClassifier classifies user replies with a chat-completion oracle,
// degrading to an ANSWERED verdict over the raw text whenever the oracle
// fails or returns something unparseable.
type OracleClassifier struct {
	genAI genai.ClientInterface
}

// NewOracleClassifier creates a classifier backed by the given oracle client.
func NewOracleClassifier(client genai.ClientInterface) *OracleClassifier {
	return &OracleClassifier{genAI: client}
}

// Classify runs the three-way classification of a reply against the pending
// question.
func (c *OracleClassifier) Classify(ctx context.Context, question, reply string) Classification {
	return c.classify(ctx, classifySystemPrompt, question, reply, false)
}

// ClassifyNumeric runs the quantitative variant used when the pending
// question asked for an amount.
func (c *OracleClassifier) ClassifyNumeric(ctx context.Context, question, reply string) Classification {
	return c.classify(ctx, classifyNumericSystemPrompt, question, reply, true)
}

func (c *OracleClassifier) classify(ctx context.Context, system, question, reply string, numeric bool) Classification {
	user := fmt.Sprintf("Question asked: %q\nUser reply: %q", question, reply)
	raw, err := c.genAI.GeneratePromptWithContext(ctx, system, user)
	if err != nil {
		slog.Warn("OracleClassifier.classify: oracle failed, treating reply as answered", "error", err, "numeric", numeric)
		return Classification{Kind: ClassAnswered, Content: reply}
	}
	return parseClassification(raw, reply, numeric)
}

// parseClassification turns the oracle's TAG|content line into a structured
// verdict. Any deviation from the expected format degrades to ANSWERED over
// the original user text.
func parseClassification(raw, original string, numeric bool) Classification {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	tag, content, found := strings.Cut(line, "|")
	if !found {
		slog.Warn("parseClassification: malformed oracle output, treating reply as answered", "raw", raw)
		return Classification{Kind: ClassAnswered, Content: original}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		content = original
	}

	switch ClassificationKind(strings.ToUpper(strings.TrimSpace(tag))) {
	case ClassAnswered:
		return Classification{Kind: ClassAnswered, Content: content}
	case ClassQuestion:
		return Classification{Kind: ClassQuestion, Content: content}
	case ClassOffTopic:
		if numeric {
			// The numeric prompt has no off-topic bucket; fold into
			// not-answered so the handler reprompts.
			return Classification{Kind: ClassNotAnswered, Content: original}
		}
		return Classification{Kind: ClassOffTopic, Content: original}
	case ClassNotAnswered:
		if !numeric {
			return Classification{Kind: ClassOffTopic, Content: original}
		}
		return Classification{Kind: ClassNotAnswered, Content: original}
	default:
		slog.Warn("parseClassification: unknown tag, treating reply as answered", "tag", tag)
		return Classification{Kind: ClassAnswered, Content: original}
	}
}
