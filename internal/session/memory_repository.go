package session

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used by tests and the
// USE_MEMORY_INFRA development mode.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*Session),
	}
}

// Create inserts a session, failing when the ID is already taken.
func (r *MemoryRepository) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.SessionID]; ok {
		return ErrSessionExists
	}
	r.sessions[s.SessionID] = clone(s)
	return nil
}

// Get returns a copy of the stored session.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(stored), nil
}

// Put upserts the session document.
func (r *MemoryRepository) Put(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.SessionID] = clone(s)
	return nil
}

// UpdateStatusIf performs the compare-and-swap under the repository lock.
func (r *MemoryRepository) UpdateStatusIf(_ context.Context, id string, expect Status, update StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[id]
	if !ok || stored.Status != expect {
		return false, nil
	}

	stored.Status = update.Status
	if update.EndReason != "" {
		stored.EndReason = update.EndReason
	}
	if update.AgentNotes != "" {
		stored.AgentNotes = update.AgentNotes
	}
	if update.EndedAt != nil {
		ended := *update.EndedAt
		stored.EndedAt = &ended
	}
	if update.TimeoutStartedAt != nil {
		started := *update.TimeoutStartedAt
		stored.TimeoutStartedAt = &started
	}
	if update.Finalized != nil {
		stored.Finalized = *update.Finalized
	}
	if update.IntelCountAtFinalize != nil {
		stored.IntelCountAtFinalize = *update.IntelCountAtFinalize
	}
	return true, nil
}

// ListIdle returns active sessions idle since before olderThan.
func (r *MemoryRepository) ListIdle(_ context.Context, olderThan time.Time, limit int) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	var idle []*Session
	for _, stored := range r.sessions {
		if stored.Status != StatusActive {
			continue
		}
		if !stored.LastActivity.Before(olderThan) {
			continue
		}
		idle = append(idle, clone(stored))
		if len(idle) >= limit {
			break
		}
	}
	return idle, nil
}

// ListStalled returns claimed sessions whose sweep never completed.
func (r *MemoryRepository) ListStalled(_ context.Context, olderThan time.Time, limit int) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	var stalled []*Session
	for _, stored := range r.sessions {
		if stored.Status != StatusProcessingTimeout {
			continue
		}
		if stored.TimeoutStartedAt == nil || !stored.TimeoutStartedAt.Before(olderThan) {
			continue
		}
		stalled = append(stalled, clone(stored))
		if len(stalled) >= limit {
			break
		}
	}
	return stalled, nil
}

func clone(s *Session) *Session {
	copied := *s
	copied.ConversationHistory = append([]TranscriptEntry(nil), s.ConversationHistory...)
	copied.ExtractedIntelligence = Intelligence{
		BankAccounts:       append([]string(nil), s.ExtractedIntelligence.BankAccounts...),
		UPIIDs:             append([]string(nil), s.ExtractedIntelligence.UPIIDs...),
		PhishingLinks:      append([]string(nil), s.ExtractedIntelligence.PhishingLinks...),
		PhoneNumbers:       append([]string(nil), s.ExtractedIntelligence.PhoneNumbers...),
		EmailAddresses:     append([]string(nil), s.ExtractedIntelligence.EmailAddresses...),
		SuspiciousKeywords: append([]string(nil), s.ExtractedIntelligence.SuspiciousKeywords...),
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		copied.EndedAt = &ended
	}
	if s.TimeoutStartedAt != nil {
		started := *s.TimeoutStartedAt
		copied.TimeoutStartedAt = &started
	}
	return &copied
}
