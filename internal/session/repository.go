package session

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound indicates the requested session ID does not exist.
var ErrSessionNotFound = errors.New("session: session not found")

// ErrRepositoryUnavailable wraps store-level failures. Turns must abort when
// the store is unreachable; they never guess at session state.
var ErrRepositoryUnavailable = errors.New("session: repository unavailable")

// StatusUpdate carries the fields written alongside a status transition.
type StatusUpdate struct {
	Status               Status
	EndReason            string
	AgentNotes           string
	EndedAt              *time.Time
	TimeoutStartedAt     *time.Time
	Finalized            *bool
	IntelCountAtFinalize *int
}

// Repository is the durable session store.
//
// UpdateStatusIf is the single concurrency guard in the system: it must be
// atomic at the store level, succeeding only when the persisted status still
// equals expect. A false return with nil error means another coordinator won
// the claim.
//
// ListStalled exists because a claim is not a lease: a sweeper that dies
// between the claim and the final update leaves the session in
// processing_timeout, and only a scan keyed on the claim time can find it
// again.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	UpdateStatusIf(ctx context.Context, id string, expect Status, update StatusUpdate) (bool, error)
	ListIdle(ctx context.Context, olderThan time.Time, limit int) ([]*Session, error)
	ListStalled(ctx context.Context, olderThan time.Time, limit int) ([]*Session, error)
}
