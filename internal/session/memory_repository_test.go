package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	s := testSession()
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.Create(ctx, s); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}

	got, err := repo.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	// The returned copy must not alias stored state.
	got.AppendInbound("mutation", time.Now())
	again, _ := repo.Get(ctx, "sess-1")
	if again.TotalMessages != 2 {
		t.Fatalf("stored session mutated through returned copy: %d messages", again.TotalMessages)
	}
}

func TestMemoryRepository_GetMissing(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryRepository_ConcurrentClaimIsExclusive(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, testSession()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const claimers = 8
	var wg sync.WaitGroup
	results := make(chan bool, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.UpdateStatusIf(ctx, "sess-1", StatusActive, StatusUpdate{
				Status: StatusProcessingTimeout,
			})
			if err != nil {
				t.Errorf("UpdateStatusIf: %v", err)
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for claimed := range results {
		if claimed {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
}

func TestMemoryRepository_ListIdle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	stale := New("stale", Metadata{}, now.Add(-5*time.Minute))
	fresh := New("fresh", Metadata{}, now)
	done := New("done", Metadata{}, now.Add(-5*time.Minute))
	done.End(EndReasonManual, "", now)

	for _, s := range []*Session{stale, fresh, done} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	idle, err := repo.ListIdle(ctx, now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	if len(idle) != 1 || idle[0].SessionID != "stale" {
		t.Fatalf("expected only the stale active session, got %v", idle)
	}
}

func TestMemoryRepository_ListStalled(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"abandoned", "working", "running"} {
		if err := repo.Create(ctx, New(id, Metadata{}, now.Add(-time.Hour))); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	oldClaim := now.Add(-10 * time.Minute)
	if _, err := repo.UpdateStatusIf(ctx, "abandoned", StatusActive, StatusUpdate{
		Status:           StatusProcessingTimeout,
		TimeoutStartedAt: &oldClaim,
	}); err != nil {
		t.Fatalf("UpdateStatusIf: %v", err)
	}
	freshClaim := now
	if _, err := repo.UpdateStatusIf(ctx, "working", StatusActive, StatusUpdate{
		Status:           StatusProcessingTimeout,
		TimeoutStartedAt: &freshClaim,
	}); err != nil {
		t.Fatalf("UpdateStatusIf: %v", err)
	}

	stalled, err := repo.ListStalled(ctx, now.Add(-5*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListStalled: %v", err)
	}
	if len(stalled) != 1 || stalled[0].SessionID != "abandoned" {
		t.Fatalf("expected only the abandoned claim, got %v", stalled)
	}
}
