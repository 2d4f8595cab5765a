package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

func TestHTTPSink_SubmitsBundle(t *testing.T) {
	var got Bundle
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "secret-token", time.Second, logging.Default())
	bundle := Bundle{
		Status:                 "success",
		SessionID:              "sess-1",
		ScamDetected:           true,
		TotalMessagesExchanged: 6,
		AgentNotes:             "bank account extracted",
		EngagementMetrics: EngagementStats{
			EngagementDurationSeconds: 180,
			TotalMessagesExchanged:    6,
		},
	}

	require.NoError(t, sink.Submit(context.Background(), bundle))
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, bundle.SessionID, got.SessionID)
	assert.Equal(t, bundle.EngagementMetrics, got.EngagementMetrics)
}

func TestHTTPSink_NoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "", time.Second, logging.Default())
	require.NoError(t, sink.Submit(context.Background(), Bundle{SessionID: "s"}))
	assert.Empty(t, gotAuth)
}

func TestHTTPSink_RejectionSurfacesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("duplicate submission"))
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "", time.Second, logging.Default())
	err := sink.Submit(context.Background(), Bundle{SessionID: "sess-dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "duplicate submission")
	assert.Contains(t, err.Error(), "sess-dup")
}

func TestHTTPSink_PanicsOnEmptyEndpoint(t *testing.T) {
	assert.Panics(t, func() {
		NewHTTPSink("", "", 0, logging.Default())
	})
}
