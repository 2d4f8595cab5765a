package honeypot

import (
	"context"
	"fmt"
	"strings"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Summarizer turns a finished engagement into report-ready agent notes.
type Summarizer interface {
	Summarize(ctx context.Context, sess *session.Session) string
}

// LLMSummarizer asks a model for a short law-enforcement summary of the
// conversation. When the model is unavailable it falls back to a
// deterministic template built from the extracted intelligence, so callers
// always get usable notes.
type LLMSummarizer struct {
	llm       LLMClient
	model     string
	maxTokens int32
	logger    *logging.Logger
}

var _ Summarizer = (*LLMSummarizer)(nil)

func NewLLMSummarizer(llm LLMClient, model string, maxTokens int32, logger *logging.Logger) *LLMSummarizer {
	if maxTokens <= 0 {
		maxTokens = 200
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMSummarizer{
		llm:       llm,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, sess *session.Session) string {
	if s.llm == nil {
		return TemplateSummary(sess)
	}

	lines := make([]string, 0, len(sess.ConversationHistory))
	for _, turn := range sess.ConversationHistory {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Sender, turn.Text))
	}

	intel := sess.ExtractedIntelligence
	var intelText strings.Builder
	if len(intel.BankAccounts) > 0 {
		fmt.Fprintf(&intelText, "Bank Accounts: %v. ", intel.BankAccounts)
	}
	if len(intel.UPIIDs) > 0 {
		fmt.Fprintf(&intelText, "UPI IDs: %v. ", intel.UPIIDs)
	}
	if len(intel.PhoneNumbers) > 0 {
		fmt.Fprintf(&intelText, "Phone Numbers: %v. ", intel.PhoneNumbers)
	}
	intelSummary := intelText.String()
	if intelSummary == "" {
		intelSummary = "None"
	}

	prompt := fmt.Sprintf(`Summarize this scam conversation concisely for law enforcement.

CONVERSATION:
%s

EXTRACTED INTELLIGENCE: %s

Write a 3-4 sentence summary covering:
1. What type of scam was attempted (account fraud, job scam, lottery, etc.)
2. What the scammer demanded from the victim
3. What intelligence was extracted (bank accounts, UPI IDs, phone numbers)
4. If you find ANY of these in the conversation, mention them: IFSC codes, scammer names, email addresses

Keep it factual and professional. Do NOT use bullet points.`, strings.Join(lines, "\n"), intelSummary)

	resp, err := s.llm.Complete(ctx, LLMRequest{
		Model:       s.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   s.maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		s.logger.Warn("summary generation failed, using template",
			"session_id", sess.SessionID,
			"error", err,
		)
		return TemplateSummary(sess)
	}

	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return TemplateSummary(sess)
	}
	return summary
}

// TemplateSummary builds deterministic agent notes from the session state
// alone. It is the fallback for every summarization failure.
func TemplateSummary(sess *session.Session) string {
	intel := sess.ExtractedIntelligence

	items := make([]string, 0, 3)
	if len(intel.BankAccounts) > 0 {
		items = append(items, fmt.Sprintf("Bank accounts: %v", intel.BankAccounts))
	}
	if len(intel.UPIIDs) > 0 {
		items = append(items, fmt.Sprintf("UPI IDs: %v", intel.UPIIDs))
	}
	if len(intel.PhoneNumbers) > 0 {
		items = append(items, fmt.Sprintf("Phone numbers: %v", intel.PhoneNumbers))
	}

	if len(items) > 0 {
		return fmt.Sprintf("Scam engagement completed over %d messages. Extracted: %s.",
			sess.TotalMessages, strings.Join(items, ". "))
	}
	return fmt.Sprintf("Scam conversation engaged over %d messages. No sensitive information extracted.",
		sess.TotalMessages)
}
