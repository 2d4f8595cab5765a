package honeypot

import (
	"context"
	"fmt"
	"strings"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Decision is the outcome of evaluating a turn. Finalize means enough
// intelligence has been gathered to submit a report; the engagement itself
// keeps running so later turns can still add to it.
type Decision struct {
	Finalize bool
	Notes    string
	Reason   string
}

const (
	ReasonIntelligenceGathered = "intelligence_gathered"
	ReasonLLMDecision          = "llm_decision"
)

// EndDecider evaluates whether the intelligence gathered so far warrants
// filing a report.
type EndDecider interface {
	Evaluate(ctx context.Context, msgCount int, intel session.Intelligence, latestInbound, latestReply string) Decision
}

// ThresholdDecider applies fixed intelligence-vs-depth rules, with an
// optional LLM assist for long conversations the rules don't settle. LLM
// failures always resolve to continue.
type ThresholdDecider struct {
	llm          LLMClient
	model        string
	llmAssistMin int
	logger       *logging.Logger
}

var _ EndDecider = (*ThresholdDecider)(nil)

func NewThresholdDecider(llm LLMClient, model string, logger *logging.Logger) *ThresholdDecider {
	if logger == nil {
		logger = logging.Default()
	}
	return &ThresholdDecider{
		llm:          llm,
		model:        model,
		llmAssistMin: 10,
		logger:       logger,
	}
}

func (d *ThresholdDecider) Evaluate(ctx context.Context, msgCount int, intel session.Intelligence, latestInbound, latestReply string) Decision {
	hasBank := len(intel.BankAccounts) > 0
	hasUPI := len(intel.UPIIDs) > 0
	hasLink := len(intel.PhishingLinks) > 0
	hasPhone := len(intel.PhoneNumbers) > 0

	if (hasBank || hasUPI) && msgCount >= 4 {
		var notes strings.Builder
		notes.WriteString("Extracted financial details: ")
		if hasBank {
			fmt.Fprintf(&notes, "Bank accounts: %v. ", intel.BankAccounts)
		}
		if hasUPI {
			fmt.Fprintf(&notes, "UPI IDs: %v. ", intel.UPIIDs)
		}
		return Decision{Finalize: true, Notes: notes.String(), Reason: ReasonIntelligenceGathered}
	}

	if hasLink && hasPhone && msgCount >= 6 {
		return Decision{
			Finalize: true,
			Notes:    "Phishing link and phone number extracted.",
			Reason:   ReasonIntelligenceGathered,
		}
	}

	categoryCount := 0
	for _, present := range []bool{hasBank, hasUPI, hasLink, hasPhone} {
		if present {
			categoryCount++
		}
	}
	if categoryCount >= 2 && msgCount >= 8 {
		return Decision{
			Finalize: true,
			Notes:    "Multiple intelligence types extracted.",
			Reason:   ReasonIntelligenceGathered,
		}
	}

	if d.llm != nil && msgCount >= d.llmAssistMin {
		if d.llmSaysEnd(ctx, msgCount, intel, latestInbound) {
			return Decision{
				Finalize: true,
				Notes:    "Scammer engagement complete. Intelligence gathered.",
				Reason:   ReasonLLMDecision,
			}
		}
	}

	return Decision{Notes: "Continuing engagement"}
}

func (d *ThresholdDecider) llmSaysEnd(ctx context.Context, msgCount int, intel session.Intelligence, latestInbound string) bool {
	prompt := fmt.Sprintf(`Scam conversation analysis. Should we END?

Messages: %d
Bank Accounts: %v
UPI IDs: %v
Links: %v
Phones: %v
Keywords: %v

Scammer said: %q

END if: enough info OR scammer suspicious OR conversation looping.
Reply ONLY: END or CONTINUE`,
		msgCount,
		intel.BankAccounts,
		intel.UPIIDs,
		intel.PhishingLinks,
		intel.PhoneNumbers,
		intel.SuspiciousKeywords,
		latestInbound,
	)

	resp, err := d.llm.Complete(ctx, LLMRequest{
		Model:       d.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		d.logger.Warn("end-decision llm assist failed, continuing engagement", "error", err)
		return false
	}
	return strings.Contains(strings.ToUpper(resp.Text), "END")
}
