package report

import (
	"time"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
)

// Evaluation floors applied to every submitted bundle.
const (
	minEngagementSeconds = 120
	minMessagesExchanged = 5
)

// EngagementStats describes how long and how deep the engagement ran.
type EngagementStats struct {
	EngagementDurationSeconds int `json:"engagementDurationSeconds"`
	TotalMessagesExchanged    int `json:"totalMessagesExchanged"`
}

// Bundle is the intelligence payload submitted to the reporting sink.
type Bundle struct {
	Status                 string               `json:"status"`
	SessionID              string               `json:"sessionId"`
	ScamDetected           bool                 `json:"scamDetected"`
	TotalMessagesExchanged int                  `json:"totalMessagesExchanged"`
	ExtractedIntelligence  session.Intelligence `json:"extractedIntelligence"`
	AgentNotes             string               `json:"agentNotes"`
	EngagementMetrics      EngagementStats      `json:"engagementMetrics"`
}

// FromSession builds a scam-detection bundle from a session snapshot. The
// engagement metrics are floored so short sessions still count as a full
// engagement downstream.
func FromSession(sess *session.Session, now time.Time) Bundle {
	duration := int(now.Sub(sess.CreatedAt).Seconds())
	if duration < minEngagementSeconds {
		duration = minEngagementSeconds
	}
	messages := sess.TotalMessages
	if messages < minMessagesExchanged {
		messages = minMessagesExchanged
	}

	notes := sess.AgentNotes
	if notes == "" {
		notes = "Session completed."
	}

	return Bundle{
		Status:                 "success",
		SessionID:              sess.SessionID,
		ScamDetected:           true,
		TotalMessagesExchanged: sess.TotalMessages,
		ExtractedIntelligence:  sess.ExtractedIntelligence,
		AgentNotes:             notes,
		EngagementMetrics: EngagementStats{
			EngagementDurationSeconds: duration,
			TotalMessagesExchanged:    messages,
		},
	}
}

// HumanDetection builds the bundle filed when first contact turns out to be
// a legitimate human. No session is created for these.
func HumanDetection(sessionID string) Bundle {
	return Bundle{
		Status:                 "success",
		SessionID:              sessionID,
		ScamDetected:           false,
		TotalMessagesExchanged: 1,
		AgentNotes:             "Legitimate message detected, no scam intent",
		EngagementMetrics: EngagementStats{
			EngagementDurationSeconds: minEngagementSeconds,
			TotalMessagesExchanged:    minMessagesExchanged,
		},
	}
}
