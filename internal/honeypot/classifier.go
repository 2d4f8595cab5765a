package honeypot

import (
	"context"
	"fmt"
	"strings"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Verdict is the first-contact classification of an unknown sender.
type Verdict string

const (
	VerdictScammer Verdict = "Scammer"
	VerdictHuman   Verdict = "Human"
)

// Classifier decides whether a first message is a scam attempt or a
// legitimate human. Misses on the human side are cheap (an acknowledgment),
// misses on the scammer side lose the engagement, so implementations default
// to VerdictScammer when uncertain or failing.
type Classifier interface {
	Classify(ctx context.Context, text string, history []session.TranscriptEntry, channel string) Verdict
}

// LLMClassifier runs a four-step framework prompt over a failover pool.
type LLMClassifier struct {
	llm    LLMClient
	model  string
	logger *logging.Logger
}

var _ Classifier = (*LLMClassifier)(nil)

func NewLLMClassifier(llm LLMClient, model string, logger *logging.Logger) *LLMClassifier {
	if llm == nil {
		panic("honeypot: classifier requires an llm client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMClassifier{llm: llm, model: model, logger: logger}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, history []session.TranscriptEntry, channel string) Verdict {
	prompt := buildClassifierPrompt(text, history, channel)

	resp, err := c.llm.Complete(ctx, LLMRequest{
		Model:       c.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("classification failed, defaulting to scammer", "error", err)
		return VerdictScammer
	}

	switch {
	case strings.Contains(resp.Text, "Scammer"):
		return VerdictScammer
	case strings.Contains(resp.Text, "Human"):
		return VerdictHuman
	default:
		return VerdictScammer
	}
}

func buildClassifierPrompt(text string, history []session.TranscriptEntry, channel string) string {
	historySummary := "None"
	if len(history) > 0 {
		recent := history
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		lines := make([]string, 0, len(recent))
		for _, turn := range recent {
			body := turn.Text
			if len(body) > 50 {
				body = body[:50]
			}
			lines = append(lines, fmt.Sprintf("%s: %s", turn.Sender, body))
		}
		historySummary = strings.Join(lines, " | ")
	}

	return fmt.Sprintf(`You are an expert scam detection system. Analyze this message using a 4-STEP FRAMEWORK.

MESSAGE: %q

CONTEXT:
- Channel: %s
- Conversation History: %d previous messages
- Previous Messages: %s

== 4-STEP DECISION FRAMEWORK ==

STEP 1: BRAND RECOGNITION
Is this from a known legitimate brand/company (banks, telecoms, major retailers, payment apps)?

STEP 2: ACTION ANALYSIS
SAFE actions (indicate HUMAN): view offers, download official app, visit store, track order, bill reminder.
DANGEROUS actions (indicate SCAMMER): share OTP/PIN/CVV, send money urgently to unknown, click link and enter bank details, verify account immediately, update KYC urgently.

STEP 3: THREAT ANALYSIS
NORMAL urgency (HUMAN): standard payment deadlines, sale deadlines, marketing urgency.
THREATENING urgency (SCAMMER): "account blocked NOW", "legal action will be taken", "pay IMMEDIATELY or service stopped".

STEP 4: LINK ANALYSIS
SAFE links (HUMAN): official brand domains, brand shorteners, government domains.
SUSPICIOUS links (SCAMMER): generic shorteners plus a financial request, unknown domains plus urgency, misspelled domains.

== DECISION LOGIC ==
- If message is BENIGN (greeting, thanks, simple question) -> HUMAN
- If Steps 1-4 all indicate SAFE -> HUMAN
- If ANY step shows SCAMMER indicators -> SCAMMER
- If conversation history shows existing relationship -> Favor HUMAN
- If unknown sender + money/OTP request -> SCAMMER
- When uncertain AND no scam indicators -> Default to HUMAN

OUTPUT: Return ONLY one word - either "Human" or "Scammer"
Classification:`, text, channel, len(history), historySummary)
}
