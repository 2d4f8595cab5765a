package honeypot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
)

func newTestCache(t *testing.T, window int) (*ContextCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewContextCache(client, window, nil), mr
}

func TestContextCache_SaveKeepsWindowSuffix(t *testing.T) {
	cache, _ := newTestCache(t, 2)
	ctx := context.Background()

	history := []session.TranscriptEntry{
		{Sender: session.SenderScammer, Text: "one", Timestamp: time.Unix(1, 0).UTC()},
		{Sender: session.SenderAgent, Text: "two", Timestamp: time.Unix(2, 0).UTC()},
		{Sender: session.SenderScammer, Text: "three", Timestamp: time.Unix(3, 0).UTC()},
	}
	if err := cache.Save(ctx, "sess-1", history); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := cache.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("cached %d entries, want window of 2", len(got))
	}
	if got[0].Text != "two" || got[1].Text != "three" {
		t.Fatalf("wrong suffix cached: %+v", got)
	}
}

func TestContextCache_LoadMissingReturnsNil(t *testing.T) {
	cache, _ := newTestCache(t, 6)

	got, err := cache.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Load returned error for missing key: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}
}

func TestContextCache_DropRemovesEntry(t *testing.T) {
	cache, mr := newTestCache(t, 6)
	ctx := context.Background()

	if err := cache.Save(ctx, "sess-2", []session.TranscriptEntry{{Sender: session.SenderScammer, Text: "hi"}}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !mr.Exists("honeypot:context:sess-2") {
		t.Fatal("expected key in redis after save")
	}

	if err := cache.Drop(ctx, "sess-2"); err != nil {
		t.Fatalf("Drop returned error: %v", err)
	}
	if mr.Exists("honeypot:context:sess-2") {
		t.Fatal("key still present after drop")
	}
}

func TestContextCache_EntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t, 6)

	if err := cache.Save(context.Background(), "sess-3", []session.TranscriptEntry{{Text: "hi"}}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	mr.FastForward(contextTTL + time.Minute)
	got, err := cache.Load(context.Background(), "sess-3")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != nil {
		t.Fatal("expected cached context to expire")
	}
}
