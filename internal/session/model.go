package session

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a scam-engagement session.
type Status string

const (
	// StatusActive means the session is live and accepting turns.
	StatusActive Status = "active"
	// StatusProcessingTimeout is the transient claim marker held by a
	// sweeper while it closes an idle session. Only reachable through the
	// repository's conditional update.
	StatusProcessingTimeout Status = "processing_timeout"
	// StatusEnded is terminal.
	StatusEnded Status = "ended"
)

// End reasons recorded when a session leaves the active state.
const (
	EndReasonAutoTimeout  = "auto_timeout"
	EndReasonMessageLimit = "message_limit"
	EndReasonManual       = "manual"
)

// Transcript senders.
const (
	SenderScammer = "scammer"
	SenderAgent   = "agent"
)

// ErrSessionExists indicates a create collided with an existing session ID.
var ErrSessionExists = errors.New("session: session already exists")

// TranscriptEntry is a single message in the engagement transcript.
type TranscriptEntry struct {
	Sender    string    `json:"sender" dynamodbav:"sender"`
	Text      string    `json:"text" dynamodbav:"text"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Metadata carries channel information supplied by the inbound boundary.
type Metadata struct {
	Channel  string `json:"channel" dynamodbav:"channel"`
	Language string `json:"language,omitempty" dynamodbav:"language,omitempty"`
	Locale   string `json:"locale,omitempty" dynamodbav:"locale,omitempty"`
}

// Session is the aggregate root for one engagement with a single counterparty.
//
// Status and Finalized are orthogonal: a session can be active and already
// reported. IntelCountAtFinalize snapshots how many intelligence categories
// were non-empty at the last report, which gates re-finalization.
type Session struct {
	SessionID            string          `json:"sessionId"`
	Status               Status          `json:"status"`
	Finalized            bool            `json:"finalized"`
	IntelCountAtFinalize int             `json:"intelCountAtFinalize"`
	ConversationHistory  []TranscriptEntry `json:"conversationHistory"`
	ExtractedIntelligence Intelligence   `json:"extractedIntelligence"`
	TotalMessages        int             `json:"totalMessages"`
	Metadata             Metadata        `json:"metadata"`
	AgentNotes           string          `json:"agentNotes,omitempty"`
	EndReason            string          `json:"endReason,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	LastActivity         time.Time       `json:"lastActivity"`
	EndedAt              *time.Time      `json:"endedAt,omitempty"`
	TimeoutStartedAt     *time.Time      `json:"timeoutStartedAt,omitempty"`
}

// New creates an active session anchored at the supplied time.
func New(id string, meta Metadata, now time.Time) *Session {
	return &Session{
		SessionID:    id,
		Status:       StatusActive,
		Metadata:     meta,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AppendInbound records a counterparty message and bumps the activity clock.
func (s *Session) AppendInbound(text string, now time.Time) {
	s.ConversationHistory = append(s.ConversationHistory, TranscriptEntry{
		Sender:    SenderScammer,
		Text:      text,
		Timestamp: now,
	})
	s.TotalMessages = len(s.ConversationHistory)
	s.LastActivity = now
}

// AppendReply records the persona's outbound reply.
func (s *Session) AppendReply(text string, now time.Time) {
	s.ConversationHistory = append(s.ConversationHistory, TranscriptEntry{
		Sender:    SenderAgent,
		Text:      text,
		Timestamp: now,
	})
	s.TotalMessages = len(s.ConversationHistory)
	s.LastActivity = now
}

// MergeIntelligence folds newly extracted fields into the session's sets.
// The union is monotone: nothing already present is ever removed.
func (s *Session) MergeIntelligence(extracted Intelligence) {
	s.ExtractedIntelligence = s.ExtractedIntelligence.Merge(extracted)
}

// ShouldFinalize reports whether a finalize decision is actionable now:
// either the session has never been reported, or new intelligence categories
// appeared since the last report.
func (s *Session) ShouldFinalize() bool {
	live := s.ExtractedIntelligence.NonEmptyCategories()
	if !s.Finalized {
		return true
	}
	return live > s.IntelCountAtFinalize
}

// MarkFinalized flags the session as reported and snapshots the live
// category count. Status is untouched: finalize is soft.
func (s *Session) MarkFinalized(notes string) {
	s.Finalized = true
	s.IntelCountAtFinalize = s.ExtractedIntelligence.NonEmptyCategories()
	if notes != "" {
		s.AgentNotes = notes
	}
}

// End moves the session to the terminal state.
func (s *Session) End(reason, notes string, now time.Time) {
	s.Status = StatusEnded
	s.EndReason = reason
	if notes != "" {
		s.AgentNotes = notes
	}
	ended := now
	s.EndedAt = &ended
}

// Ended reports whether the session has left the active state.
func (s *Session) Ended() bool {
	return s.Status != StatusActive
}
