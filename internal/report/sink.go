package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Sink receives finalized intelligence bundles.
type Sink interface {
	Submit(ctx context.Context, bundle Bundle) error
}

const defaultSinkTimeout = 10 * time.Second

// HTTPSink posts bundles as JSON to an external evaluation endpoint.
type HTTPSink struct {
	client    *http.Client
	endpoint  string
	authToken string
	logger    *logging.Logger
}

var _ Sink = (*HTTPSink)(nil)

func NewHTTPSink(endpoint, authToken string, timeout time.Duration, logger *logging.Logger) *HTTPSink {
	if endpoint == "" {
		panic("report: sink endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultSinkTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPSink{
		client:    &http.Client{Timeout: timeout},
		endpoint:  endpoint,
		authToken: authToken,
		logger:    logger,
	}
}

func (s *HTTPSink) Submit(ctx context.Context, bundle Bundle) error {
	body, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("report: failed to marshal bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("report: failed to build sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("report: sink request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("report: sink rejected bundle for %s: status %d: %s",
			bundle.SessionID, resp.StatusCode, string(snippet))
	}

	s.logger.Info("report bundle submitted",
		"session_id", bundle.SessionID,
		"scam_detected", bundle.ScamDetected,
		"messages", bundle.TotalMessagesExchanged,
	)
	return nil
}
