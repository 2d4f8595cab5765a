package honeypot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/scamshield-ai/honeypot-platform/internal/observability/metrics"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// ErrAllBackendsExhausted indicates every backend in a failover pool failed
// for one call. It wraps the last underlying error.
var ErrAllBackendsExhausted = errors.New("honeypot: all llm backends exhausted")

const defaultRetryDelay = 100 * time.Millisecond

// FailoverClient presents one stable LLMClient contract backed by an ordered
// pool of credentialed backends for the same capability. On failure it
// advances a rotating cursor and retries the next backend; each backend is
// tried at most once per call. The cursor is owned by the instance and
// persists across calls, so sustained failures on one backend do not
// repeatedly pay for it first. No backend is ever treated as permanently
// dead.
type FailoverClient struct {
	capability string
	backends   []LLMClient
	cursor     atomic.Int64
	retryDelay time.Duration
	logger     *logging.Logger
	metrics    *metrics.EngagementMetrics
}

var _ LLMClient = (*FailoverClient)(nil)

// FailoverOption configures a FailoverClient.
type FailoverOption func(*FailoverClient)

// WithRetryDelay overrides the pause between attempts.
func WithRetryDelay(d time.Duration) FailoverOption {
	return func(c *FailoverClient) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithFailoverMetrics attaches per-attempt observability.
func WithFailoverMetrics(m *metrics.EngagementMetrics) FailoverOption {
	return func(c *FailoverClient) {
		c.metrics = m
	}
}

// NewFailoverClient builds a failover pool for one capability.
func NewFailoverClient(capability string, backends []LLMClient, logger *logging.Logger, opts ...FailoverOption) *FailoverClient {
	if len(backends) == 0 {
		panic("honeypot: failover pool cannot be empty")
	}
	if capability == "" {
		capability = "generation"
	}
	if logger == nil {
		logger = logging.Default()
	}

	c := &FailoverClient{
		capability: capability,
		backends:   backends,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PoolSize returns the number of backends in the pool.
func (c *FailoverClient) PoolSize() int {
	return len(c.backends)
}

// Complete tries backends starting at the current cursor position, advancing
// on failure. On success the cursor stays on the succeeding backend. When
// every backend fails the call returns ErrAllBackendsExhausted wrapping the
// last error.
func (c *FailoverClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	pool := len(c.backends)
	var lastErr error

	for attempt := 0; attempt < pool; attempt++ {
		idx := int(c.cursor.Load()%int64(pool)+int64(pool)) % pool
		resp, err := c.backends[idx].Complete(ctx, req)
		if err == nil {
			c.metrics.ObserveProviderAttempt(c.capability, "success")
			if attempt > 0 {
				c.logger.Info("llm backend recovered after failover",
					"capability", c.capability,
					"backend", idx+1,
					"failed_attempts", attempt,
				)
			}
			return resp, nil
		}

		lastErr = err
		c.metrics.ObserveProviderAttempt(c.capability, "failure")
		c.logger.Warn("llm backend failed, rotating",
			"capability", c.capability,
			"backend", idx+1,
			"pool_size", pool,
			"error", err,
		)
		c.cursor.Add(1)

		if attempt < pool-1 && c.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return LLMResponse{}, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	c.logger.Error("all llm backends exhausted",
		"capability", c.capability,
		"pool_size", pool,
		"last_error", lastErr,
	)
	return LLMResponse{}, fmt.Errorf("%w: %v", ErrAllBackendsExhausted, lastErr)
}
