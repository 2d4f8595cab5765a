package honeypot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

func idleSession(id string, idleFor time.Duration) *session.Session {
	created := time.Now().Add(-idleFor - time.Minute)
	sess := session.New(id, session.Metadata{Channel: "SMS"}, created)
	sess.AppendInbound("transfer to 123456789012", created)
	sess.AppendReply("How?", created)
	sess.MergeIntelligence(session.Intelligence{BankAccounts: []string{"123456789012"}})
	sess.LastActivity = time.Now().Add(-idleFor)
	return sess
}

func newSweeperFixture(t *testing.T, repo session.Repository, reports ReportSubmitter) *IdleSweeper {
	t.Helper()
	return NewIdleSweeper(SweeperParams{
		Repo:        repo,
		Summarizer:  fakeSummarizer{text: "idle summary"},
		Reports:     reports,
		IdleTimeout: 45 * time.Second,
		Logger:      logging.Default(),
	})
}

func TestSweeper_EndsIdleSession(t *testing.T) {
	repo := session.NewMemoryRepository()
	reports := &recordingReports{}
	ctx := context.Background()

	if err := repo.Create(ctx, idleSession("idle-1", 2*time.Minute)); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	sweeper := newSweeperFixture(t, repo, reports)
	if err := sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}

	sess, err := repo.Get(ctx, "idle-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if sess.Status != session.StatusEnded {
		t.Fatalf("status = %q, want ended", sess.Status)
	}
	if sess.EndReason != session.EndReasonAutoTimeout {
		t.Fatalf("end reason = %q", sess.EndReason)
	}
	if sess.AgentNotes != "idle summary" {
		t.Fatalf("agent notes = %q", sess.AgentNotes)
	}
	if !sess.Finalized {
		t.Fatal("swept session not marked finalized")
	}
	if sess.IntelCountAtFinalize != 1 {
		t.Fatalf("intel count at finalize = %d, want 1", sess.IntelCountAtFinalize)
	}

	if reports.count() != 1 {
		t.Fatalf("reports = %d, want 1", reports.count())
	}
	bundle := reports.last()
	if !bundle.ScamDetected || bundle.SessionID != "idle-1" {
		t.Fatalf("unexpected bundle: %+v", bundle)
	}
	if len(bundle.ExtractedIntelligence.BankAccounts) != 1 {
		t.Fatalf("bundle missing intelligence: %+v", bundle.ExtractedIntelligence)
	}
}

func TestSweeper_FreshSessionsUntouched(t *testing.T) {
	repo := session.NewMemoryRepository()
	reports := &recordingReports{}
	ctx := context.Background()

	fresh := idleSession("fresh-1", 0)
	fresh.LastActivity = time.Now()
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	sweeper := newSweeperFixture(t, repo, reports)
	if err := sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}

	sess, _ := repo.Get(ctx, "fresh-1")
	if sess.Status != session.StatusActive {
		t.Fatalf("fresh session swept: %q", sess.Status)
	}
	if reports.count() != 0 {
		t.Fatalf("reports = %d for fresh session", reports.count())
	}
}

func TestSweeper_ConcurrentSweepsEndExactlyOnce(t *testing.T) {
	repo := session.NewMemoryRepository()
	reports := &recordingReports{}
	ctx := context.Background()

	if err := repo.Create(ctx, idleSession("idle-race", 2*time.Minute)); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	a := newSweeperFixture(t, repo, reports)
	b := newSweeperFixture(t, repo, reports)

	var wg sync.WaitGroup
	for _, sweeper := range []*IdleSweeper{a, b} {
		wg.Add(1)
		go func(s *IdleSweeper) {
			defer wg.Done()
			_ = s.SweepOnce(ctx)
		}(sweeper)
	}
	wg.Wait()

	// The conditional claim lets exactly one sweeper process the session.
	if reports.count() != 1 {
		t.Fatalf("reports = %d, want exactly 1", reports.count())
	}
	sess, _ := repo.Get(ctx, "idle-race")
	if sess.Status != session.StatusEnded {
		t.Fatalf("status = %q, want ended", sess.Status)
	}
}

func TestSweeper_ReportFailureStillEndsSession(t *testing.T) {
	repo := session.NewMemoryRepository()
	reports := &recordingReports{err: errors.New("queue down")}
	ctx := context.Background()

	if err := repo.Create(ctx, idleSession("idle-2", 2*time.Minute)); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	sweeper := newSweeperFixture(t, repo, reports)
	if err := sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}

	// A session must never be stranded in processing_timeout.
	sess, _ := repo.Get(ctx, "idle-2")
	if sess.Status != session.StatusEnded {
		t.Fatalf("status = %q, want ended despite report failure", sess.Status)
	}
}

func TestSweeper_ReclaimsAbandonedClaim(t *testing.T) {
	repo := session.NewMemoryRepository()
	reports := &recordingReports{}
	ctx := context.Background()

	// A claim that never resolved: the claiming sweeper died before the
	// final update, ten minutes ago.
	if err := repo.Create(ctx, idleSession("stuck-1", 2*time.Minute)); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	claimedAt := time.Now().Add(-10 * time.Minute)
	claimed, err := repo.UpdateStatusIf(ctx, "stuck-1", session.StatusActive, session.StatusUpdate{
		Status:           session.StatusProcessingTimeout,
		TimeoutStartedAt: &claimedAt,
	})
	if err != nil || !claimed {
		t.Fatalf("seed claim failed: claimed=%v err=%v", claimed, err)
	}

	sweeper := newSweeperFixture(t, repo, reports)
	if err := sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}

	sess, err := repo.Get(ctx, "stuck-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if sess.Status != session.StatusEnded {
		t.Fatalf("status = %q, want ended after reclaim", sess.Status)
	}
	if sess.EndReason != session.EndReasonAutoTimeout {
		t.Fatalf("end reason = %q", sess.EndReason)
	}
	if reports.count() != 1 {
		t.Fatalf("reports = %d, want 1 from the reclaim", reports.count())
	}
}

func TestSweeper_FreshClaimNotReclaimed(t *testing.T) {
	repo := session.NewMemoryRepository()
	reports := &recordingReports{}
	ctx := context.Background()

	if err := repo.Create(ctx, idleSession("claimed-1", 2*time.Minute)); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	claimedAt := time.Now()
	if _, err := repo.UpdateStatusIf(ctx, "claimed-1", session.StatusActive, session.StatusUpdate{
		Status:           session.StatusProcessingTimeout,
		TimeoutStartedAt: &claimedAt,
	}); err != nil {
		t.Fatalf("seed claim failed: %v", err)
	}

	sweeper := newSweeperFixture(t, repo, reports)
	if err := sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce returned error: %v", err)
	}

	// Another sweeper is presumably still working this one.
	sess, _ := repo.Get(ctx, "claimed-1")
	if sess.Status != session.StatusProcessingTimeout {
		t.Fatalf("status = %q, fresh claim must be left alone", sess.Status)
	}
	if reports.count() != 0 {
		t.Fatalf("reports = %d for a live claim", reports.count())
	}
}

type listErrRepo struct {
	session.Repository
	listErr error
}

func (r *listErrRepo) ListIdle(context.Context, time.Time, int) ([]*session.Session, error) {
	return nil, r.listErr
}

func TestSweeper_ListFailureSurfaces(t *testing.T) {
	listErr := errors.New("scan failed")
	sweeper := newSweeperFixture(t, &listErrRepo{Repository: session.NewMemoryRepository(), listErr: listErr}, &recordingReports{})

	if err := sweeper.SweepOnce(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}
