package honeypot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
)

const contextTTL = 24 * time.Hour

// ContextCache keeps a short suffix of each session's transcript in redis so
// prompt building does not reload the full aggregate. The durable transcript
// always lives in the repository; the cache is best-effort.
type ContextCache struct {
	redis  *redis.Client
	window int
	tracer trace.Tracer
}

func NewContextCache(client *redis.Client, window int, tracer trace.Tracer) *ContextCache {
	if client == nil {
		panic("honeypot: redis client cannot be nil")
	}
	if window <= 0 {
		window = 6
	}
	if tracer == nil {
		tracer = otel.Tracer("honeypot.internal.context_cache")
	}
	return &ContextCache{
		redis:  client,
		window: window,
		tracer: tracer,
	}
}

// Save stores the last window entries of the transcript.
func (c *ContextCache) Save(ctx context.Context, sessionID string, history []session.TranscriptEntry) error {
	ctx, span := c.tracer.Start(ctx, "honeypot.save_context")
	defer span.End()

	suffix := history
	if len(suffix) > c.window {
		suffix = suffix[len(suffix)-c.window:]
	}

	data, err := json.Marshal(suffix)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("honeypot: failed to marshal context: %w", err)
	}
	if err := c.redis.Set(ctx, contextKey(sessionID), data, contextTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("honeypot: failed to persist context: %w", err)
	}
	return nil
}

// Load returns the cached suffix, or nil when nothing is cached.
func (c *ContextCache) Load(ctx context.Context, sessionID string) ([]session.TranscriptEntry, error) {
	ctx, span := c.tracer.Start(ctx, "honeypot.load_context")
	defer span.End()

	data, err := c.redis.Get(ctx, contextKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("honeypot: failed to load context: %w", err)
	}

	var suffix []session.TranscriptEntry
	if err := json.Unmarshal(data, &suffix); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("honeypot: failed to decode context: %w", err)
	}
	return suffix, nil
}

// Drop removes the cached suffix when a session ends.
func (c *ContextCache) Drop(ctx context.Context, sessionID string) error {
	ctx, span := c.tracer.Start(ctx, "honeypot.drop_context")
	defer span.End()

	if err := c.redis.Del(ctx, contextKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("honeypot: failed to drop context: %w", err)
	}
	return nil
}

func contextKey(sessionID string) string {
	return fmt.Sprintf("honeypot:context:%s", sessionID)
}
