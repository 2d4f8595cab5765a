package honeypot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// ReplyGenerator produces the persona's next line. A turn must always yield a
// reply, so implementations degrade to a canned line instead of returning an
// error when every backend is down.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, inbound string, history []session.TranscriptEntry, intel session.Intelligence, channel string) (string, error)
}

const fallbackReply = "That sounds great! How do I proceed with this?"

// PersonaReplyGenerator plays a naive victim: interested, a little confused,
// steadily steering the scammer toward revealing payment and contact details.
// The prompt stage advances with the turn count.
type PersonaReplyGenerator struct {
	llm       LLMClient
	model     string
	maxTokens int32
	logger    *logging.Logger
}

var _ ReplyGenerator = (*PersonaReplyGenerator)(nil)

func NewPersonaReplyGenerator(llm LLMClient, model string, maxTokens int32, logger *logging.Logger) *PersonaReplyGenerator {
	if llm == nil {
		panic("honeypot: reply generator requires an llm client")
	}
	if maxTokens <= 0 {
		maxTokens = 60
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PersonaReplyGenerator{
		llm:       llm,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (g *PersonaReplyGenerator) GenerateReply(ctx context.Context, inbound string, history []session.TranscriptEntry, intel session.Intelligence, channel string) (string, error) {
	prompt := buildPersonaPrompt(inbound, history, intel, channel)

	resp, err := g.llm.Complete(ctx, LLMRequest{
		Model:       g.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   g.maxTokens,
		Temperature: 0.8,
	})
	if err != nil {
		if errors.Is(err, ErrAllBackendsExhausted) {
			g.logger.Warn("reply generation exhausted all backends, using canned line", "channel", channel)
			return fallbackReply, nil
		}
		return "", fmt.Errorf("honeypot: reply generation: %w", err)
	}

	reply := strings.Trim(strings.TrimSpace(resp.Text), `"'`)
	if reply == "" {
		return fallbackReply, nil
	}
	return reply, nil
}

func buildPersonaPrompt(inbound string, history []session.TranscriptEntry, intel session.Intelligence, channel string) string {
	historyText := ""
	if len(history) > 0 {
		recent := history
		if len(recent) > 6 {
			recent = recent[len(recent)-6:]
		}
		lines := make([]string, 0, len(recent))
		for _, turn := range recent {
			lines = append(lines, fmt.Sprintf("%s: %s", turn.Sender, turn.Text))
		}
		historyText = strings.Join(lines, "\n")
	}

	turnCount := len(history) / 2

	return fmt.Sprintf(`You are playing a NAIVE PERSON who received a scam message on %s. You believe it's REAL.
Your goal: Keep the conversation going naturally to make scammer reveal their bank/UPI/phone details.

CONVERSATION SO FAR:
%s

DETAILS THE SCAMMER ALREADY SHARED: %s

SCAMMER'S MESSAGE: %q
TURN NUMBER: %d

== YOUR CHARACTER ==
- Regular person, not tech-savvy
- Excited about winning/helping
- Slightly confused, asks clarifying questions
- ENGLISH ONLY (no Hindi, no regional words)

== NATURAL CONVERSATION FLOW ==

TURN 0 (First reply): Express INTEREST and ask how to proceed
TURN 1-2: Show CONFUSION about the link/process, ask for help directly
TURN 3-4: OFFER to contact them or send details ("What's your number?", "What's your payment ID?")
TURN 5+: Be more DIRECT about getting their details ("Send me your UPI, I'm ready to pay now.")

== IMPORTANT RULES ==
1. ENGLISH ONLY
2. Sound like a real person having a conversation
3. Don't repeat the same question twice
4. Don't be suspicious or cautious
5. Each reply should be 1-2 short sentences MAX
6. Progress the conversation naturally
7. Ask for details they have NOT shared yet before repeating old questions

Generate your reply (English only, max 2 sentences):`, channel, historyText, collectedDetails(intel), inbound, turnCount)
}

// collectedDetails names the categories the scammer has already given up, so
// the persona steers toward what is still missing.
func collectedDetails(intel session.Intelligence) string {
	var parts []string
	if len(intel.BankAccounts) > 0 {
		parts = append(parts, "bank account")
	}
	if len(intel.UPIIDs) > 0 {
		parts = append(parts, "UPI ID")
	}
	if len(intel.PhoneNumbers) > 0 {
		parts = append(parts, "phone number")
	}
	if len(intel.PhishingLinks) > 0 {
		parts = append(parts, "link")
	}
	if len(intel.EmailAddresses) > 0 {
		parts = append(parts, "email")
	}
	if len(parts) == 0 {
		return "none yet"
	}
	return strings.Join(parts, ", ")
}
