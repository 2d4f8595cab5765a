package notify

import (
	"context"
	"fmt"

	"github.com/scamshield-ai/honeypot-platform/internal/report"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// ReportNotifier emails operations whenever an intelligence report is filed.
// It is a no-op when no recipient or sender is configured.
type ReportNotifier struct {
	sender   EmailSender
	opsEmail string
	logger   *logging.Logger
}

func NewReportNotifier(sender EmailSender, opsEmail string, logger *logging.Logger) *ReportNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReportNotifier{
		sender:   sender,
		opsEmail: opsEmail,
		logger:   logger,
	}
}

// NotifyReportFiled sends a plain-text summary of the filed report.
func (n *ReportNotifier) NotifyReportFiled(ctx context.Context, bundle report.Bundle) error {
	if n == nil || n.sender == nil || n.opsEmail == "" {
		return nil
	}

	intel := bundle.ExtractedIntelligence
	body := fmt.Sprintf(`Intelligence report filed for session %s.

Scam detected: %t
Messages exchanged: %d
Bank accounts: %d
UPI IDs: %d
Phishing links: %d
Phone numbers: %d
Email addresses: %d

Notes: %s
`,
		bundle.SessionID,
		bundle.ScamDetected,
		bundle.TotalMessagesExchanged,
		len(intel.BankAccounts),
		len(intel.UPIIDs),
		len(intel.PhishingLinks),
		len(intel.PhoneNumbers),
		len(intel.EmailAddresses),
		bundle.AgentNotes,
	)

	return n.sender.Send(ctx, EmailMessage{
		To:      n.opsEmail,
		Subject: fmt.Sprintf("Scam report filed: %s", bundle.SessionID),
		Body:    body,
	})
}
