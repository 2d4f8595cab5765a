package honeypot

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Handler exposes the engagement engine over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("honeypot: handler engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

type inboundMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type engagePayload struct {
	SessionID           string           `json:"sessionId"`
	Message             inboundMessage   `json:"message"`
	ConversationHistory []inboundMessage `json:"conversationHistory"`
	Metadata            session.Metadata `json:"metadata"`
}

// Engage handles POST /api/v1/engage.
func (h *Handler) Engage(w http.ResponseWriter, r *http.Request) {
	var payload engagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if strings.TrimSpace(payload.Message.Text) == "" {
		writeError(w, http.StatusBadRequest, "message.text is required")
		return
	}

	resp, err := h.engine.Engage(r.Context(), EngageRequest{
		SessionID:           payload.SessionID,
		Text:                payload.Message.Text,
		ConversationHistory: toTranscript(payload.ConversationHistory),
		Metadata:            payload.Metadata,
	})
	if err != nil {
		h.logger.Error("engage failed", "session_id", payload.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "engagement failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetSession handles GET /admin/sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.engine.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("session fetch failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "session fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, sessionView(sess))
}

// EndSession handles POST /admin/sessions/{sessionID}/end.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.engine.EndSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("manual end failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "session end failed")
		return
	}

	writeJSON(w, http.StatusOK, sessionView(sess))
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toTranscript(messages []inboundMessage) []session.TranscriptEntry {
	if len(messages) == 0 {
		return nil
	}
	entries := make([]session.TranscriptEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, session.TranscriptEntry{
			Sender:    msg.Sender,
			Text:      msg.Text,
			Timestamp: time.UnixMilli(msg.Timestamp).UTC(),
		})
	}
	return entries
}

func sessionView(sess *session.Session) map[string]any {
	view := map[string]any{
		"sessionId":              sess.SessionID,
		"status":                 string(sess.Status),
		"scamDetected":           true,
		"finalized":              sess.Finalized,
		"totalMessagesExchanged": sess.TotalMessages,
		"extractedIntelligence":  sess.ExtractedIntelligence,
		"agentNotes":             sess.AgentNotes,
		"conversationHistory":    sess.ConversationHistory,
		"metadata":               sess.Metadata,
		"createdAt":              sess.CreatedAt.UTC().Format(time.RFC3339),
	}
	if sess.EndReason != "" {
		view["endReason"] = sess.EndReason
	}
	if sess.EndedAt != nil {
		view["endedAt"] = sess.EndedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
