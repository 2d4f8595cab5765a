package honeypot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

type scriptedBackend struct {
	calls int
	err   error
	text  string
}

func (b *scriptedBackend) Complete(_ context.Context, _ LLMRequest) (LLMResponse, error) {
	b.calls++
	if b.err != nil {
		return LLMResponse{}, b.err
	}
	return LLMResponse{Text: b.text}, nil
}

func TestFailover_RotatesToHealthyBackend(t *testing.T) {
	first := &scriptedBackend{err: errors.New("rate limited")}
	second := &scriptedBackend{err: errors.New("auth error")}
	third := &scriptedBackend{text: "hello from backend three"}

	client := NewFailoverClient("reply", []LLMClient{first, second, third}, logging.Default(), WithRetryDelay(0))

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Text != "hello from backend three" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 1 {
		t.Fatalf("expected exactly one attempt per backend, got %d/%d/%d", first.calls, second.calls, third.calls)
	}
}

func TestFailover_CursorPersistsAcrossCalls(t *testing.T) {
	first := &scriptedBackend{err: errors.New("down")}
	second := &scriptedBackend{text: "ok"}
	third := &scriptedBackend{text: "ok"}

	client := NewFailoverClient("reply", []LLMClient{first, second, third}, logging.Default(), WithRetryDelay(0))

	if _, err := client.Complete(context.Background(), LLMRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.Complete(context.Background(), LLMRequest{}); err != nil {
		t.Fatalf("second call: %v", err)
	}

	// The second call must start at the backend that last succeeded, not
	// retry the known-bad first backend.
	if first.calls != 1 {
		t.Fatalf("expected failing backend to be tried once, got %d", first.calls)
	}
	if second.calls != 2 {
		t.Fatalf("expected successful backend to serve both calls, got %d", second.calls)
	}
}

func TestFailover_AllBackendsExhausted(t *testing.T) {
	backends := []LLMClient{
		&scriptedBackend{err: errors.New("fail one")},
		&scriptedBackend{err: errors.New("fail two")},
		&scriptedBackend{err: errors.New("fail three")},
	}

	client := NewFailoverClient("reply", backends, logging.Default(), WithRetryDelay(0))

	_, err := client.Complete(context.Background(), LLMRequest{})
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("expected ErrAllBackendsExhausted, got %v", err)
	}
	// Aggregate failure carries the last underlying error.
	if want := "fail three"; err == nil || !strings.Contains(err.Error(), want) {
		t.Fatalf("expected last error %q in %v", want, err)
	}

	total := 0
	for _, b := range backends {
		total += b.(*scriptedBackend).calls
	}
	if total != len(backends) {
		t.Fatalf("expected exactly poolSize attempts, got %d", total)
	}
}

func TestFailover_NextCallRetriesAfterExhaustion(t *testing.T) {
	flaky := &scriptedBackend{err: errors.New("down")}
	client := NewFailoverClient("reply", []LLMClient{flaky}, logging.Default(), WithRetryDelay(0))

	if _, err := client.Complete(context.Background(), LLMRequest{}); !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	// No backend is permanently dead: the next call tries it again.
	flaky.err = nil
	flaky.text = "recovered"
	resp, err := client.Complete(context.Background(), LLMRequest{})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if resp.Text != "recovered" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
}
