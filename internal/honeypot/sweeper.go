package honeypot

import (
	"context"
	"time"

	"github.com/scamshield-ai/honeypot-platform/internal/observability/metrics"
	"github.com/scamshield-ai/honeypot-platform/internal/report"
	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// IdleSweeper ends sessions whose counterparty went quiet. Each sweep claims
// candidates one at a time with a conditional status update, so concurrent
// sweepers (in-process or across replicas) process each session exactly once.
// Claims abandoned by a crashed or partitioned sweeper are reclaimed once
// they outlive the reclaim deadline.
type IdleSweeper struct {
	repo       session.Repository
	summarizer Summarizer
	reports    ReportSubmitter
	archiver   Archiver

	idleTimeout  time.Duration
	interval     time.Duration
	reclaimAfter time.Duration
	batchSize    int

	metrics *metrics.EngagementMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// SweeperParams wires the sweeper. Repo, Summarizer and Reports are required.
type SweeperParams struct {
	Repo       session.Repository
	Summarizer Summarizer
	Reports    ReportSubmitter
	Archiver   Archiver

	IdleTimeout   time.Duration
	SweepInterval time.Duration
	ReclaimAfter  time.Duration
	BatchSize     int

	Metrics *metrics.EngagementMetrics
	Logger  *logging.Logger
}

func NewIdleSweeper(p SweeperParams) *IdleSweeper {
	if p.Repo == nil {
		panic("honeypot: sweeper repository cannot be nil")
	}
	if p.Summarizer == nil {
		panic("honeypot: sweeper summarizer cannot be nil")
	}
	if p.Reports == nil {
		panic("honeypot: sweeper report submitter cannot be nil")
	}
	if p.IdleTimeout <= 0 {
		p.IdleTimeout = 45 * time.Second
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = 60 * time.Second
	}
	if p.ReclaimAfter <= 0 {
		p.ReclaimAfter = 5 * time.Minute
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 100
	}
	if p.Logger == nil {
		p.Logger = logging.Default()
	}

	return &IdleSweeper{
		repo:         p.Repo,
		summarizer:   p.Summarizer,
		reports:      p.Reports,
		archiver:     p.Archiver,
		idleTimeout:  p.IdleTimeout,
		interval:     p.SweepInterval,
		reclaimAfter: p.ReclaimAfter,
		batchSize:    p.BatchSize,
		metrics:      p.Metrics,
		logger:       p.Logger,
		now:          time.Now,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *IdleSweeper) Run(ctx context.Context) {
	s.logger.Info("idle sweeper started",
		"idle_timeout", s.idleTimeout.String(),
		"interval", s.interval.String(),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("idle sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce scans for idle sessions and closes each one it can claim.
// Per-session failures are logged and the scan continues.
func (s *IdleSweeper) SweepOnce(ctx context.Context) error {
	cutoff := s.now().Add(-s.idleTimeout)
	candidates, err := s.repo.ListIdle(ctx, cutoff, s.batchSize)
	if err != nil {
		return err
	}

	for _, sess := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.sweepSession(ctx, sess)
	}

	stalled, err := s.repo.ListStalled(ctx, s.now().Add(-s.reclaimAfter), s.batchSize)
	if err != nil {
		return err
	}
	for _, sess := range stalled {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.reclaimSession(ctx, sess)
	}
	return nil
}

func (s *IdleSweeper) sweepSession(ctx context.Context, sess *session.Session) {
	now := s.now()

	claimed, err := s.repo.UpdateStatusIf(ctx, sess.SessionID, session.StatusActive, session.StatusUpdate{
		Status:           session.StatusProcessingTimeout,
		TimeoutStartedAt: &now,
	})
	if err != nil {
		s.metrics.ObserveSweep("claim_error")
		s.logger.Error("sweep claim failed", "session_id", sess.SessionID, "error", err)
		return
	}
	if !claimed {
		// Another sweeper (or a concurrent turn ending the session) got
		// there first.
		s.metrics.ObserveSweep("lost_claim")
		return
	}

	notes := s.summarizer.Summarize(ctx, sess)
	sess.End(session.EndReasonAutoTimeout, notes, s.now())
	sess.MarkFinalized(notes)

	bundle := report.FromSession(sess, s.now())
	if err := s.reports.Enqueue(ctx, bundle); err != nil {
		s.logger.Error("sweep report enqueue failed",
			"session_id", sess.SessionID,
			"error", err,
		)
	}

	// The claim must always resolve to ended, even when summarization or
	// reporting had to fall back.
	endedAt := *sess.EndedAt
	finalized := sess.Finalized
	intelCount := sess.IntelCountAtFinalize
	if _, err := s.repo.UpdateStatusIf(ctx, sess.SessionID, session.StatusProcessingTimeout, session.StatusUpdate{
		Status:               session.StatusEnded,
		EndReason:            session.EndReasonAutoTimeout,
		AgentNotes:           notes,
		EndedAt:              &endedAt,
		Finalized:            &finalized,
		IntelCountAtFinalize: &intelCount,
	}); err != nil {
		s.metrics.ObserveSweep("end_error")
		s.logger.Error("sweep final update failed", "session_id", sess.SessionID, "error", err)
		return
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveSession(ctx, sess); err != nil {
			s.logger.Warn("sweep archive failed", "session_id", sess.SessionID, "error", err)
		}
	}

	s.metrics.ObserveSweep("ended")
	s.logger.Info("idle session ended",
		"session_id", sess.SessionID,
		"messages", sess.TotalMessages,
	)
}

// reclaimSession finishes a claim an earlier sweep never resolved, typically
// after a store outage between the claim and the final update. The ended
// transition is the arbiter here: racing reclaimers race on it, and only the
// winner files the report.
func (s *IdleSweeper) reclaimSession(ctx context.Context, sess *session.Session) {
	notes := s.summarizer.Summarize(ctx, sess)
	sess.End(session.EndReasonAutoTimeout, notes, s.now())
	sess.MarkFinalized(notes)

	endedAt := *sess.EndedAt
	finalized := sess.Finalized
	intelCount := sess.IntelCountAtFinalize
	claimed, err := s.repo.UpdateStatusIf(ctx, sess.SessionID, session.StatusProcessingTimeout, session.StatusUpdate{
		Status:               session.StatusEnded,
		EndReason:            session.EndReasonAutoTimeout,
		AgentNotes:           notes,
		EndedAt:              &endedAt,
		Finalized:            &finalized,
		IntelCountAtFinalize: &intelCount,
	})
	if err != nil {
		s.metrics.ObserveSweep("reclaim_error")
		s.logger.Error("stalled claim reclaim failed", "session_id", sess.SessionID, "error", err)
		return
	}
	if !claimed {
		s.metrics.ObserveSweep("lost_claim")
		return
	}

	bundle := report.FromSession(sess, s.now())
	if err := s.reports.Enqueue(ctx, bundle); err != nil {
		s.logger.Error("reclaim report enqueue failed",
			"session_id", sess.SessionID,
			"error", err,
		)
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveSession(ctx, sess); err != nil {
			s.logger.Warn("reclaim archive failed", "session_id", sess.SessionID, "error", err)
		}
	}

	s.metrics.ObserveSweep("reclaimed")
	s.logger.Info("stalled session reclaimed",
		"session_id", sess.SessionID,
		"messages", sess.TotalMessages,
	)
}
