package honeypot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/scamshield-ai/honeypot-platform/internal/observability/metrics"
	"github.com/scamshield-ai/honeypot-platform/internal/report"
	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

const (
	holdingReply = "Thank you for your patience, we are processing your request."
	humanReply   = "Thank you for your message."

	defaultMaxMessages = 15
)

// ReportSubmitter accepts finalized intelligence bundles for asynchronous
// delivery.
type ReportSubmitter interface {
	Enqueue(ctx context.Context, bundle report.Bundle) error
}

// Archiver persists a completed session to long-term storage. Archival is
// best-effort; failures never abort the turn.
type Archiver interface {
	ArchiveSession(ctx context.Context, sess *session.Session) error
}

// Notifier tells operations about a filed report. Best-effort.
type Notifier interface {
	NotifyReportFiled(ctx context.Context, bundle report.Bundle) error
}

// EngageRequest is one inbound counterparty message routed to the engine.
type EngageRequest struct {
	SessionID           string
	Text                string
	ConversationHistory []session.TranscriptEntry
	Metadata            session.Metadata
}

// EngageResponse is what the channel adapter sends back.
type EngageResponse struct {
	Status                 string                `json:"status"`
	Reply                  string                `json:"reply"`
	Classification         string                `json:"classification,omitempty"`
	SessionID              string                `json:"sessionId,omitempty"`
	SessionActive          bool                  `json:"sessionActive"`
	ScamDetected           bool                  `json:"scamDetected,omitempty"`
	TotalMessagesExchanged int                   `json:"totalMessagesExchanged,omitempty"`
	ExtractedIntelligence  *session.Intelligence `json:"extractedIntelligence,omitempty"`
	AgentNotes             string                `json:"agentNotes,omitempty"`
	EndReason              string                `json:"endReason,omitempty"`
}

// EngineParams wires the engine's collaborators. Repo, Classifier, Extractor,
// Replies, Decider, Summarizer and Reports are required; the rest are
// optional.
type EngineParams struct {
	Repo       session.Repository
	Classifier Classifier
	Extractor  Extractor
	Replies    ReplyGenerator
	Decider    EndDecider
	Summarizer Summarizer
	Reports    ReportSubmitter

	Cache    *ContextCache
	Archiver Archiver
	Notifier Notifier

	Metrics     *metrics.EngagementMetrics
	Logger      *logging.Logger
	Tracer      trace.Tracer
	MaxMessages int
}

// Engine drives the engagement lifecycle: first-contact classification,
// per-turn orchestration, soft finalization and session end.
type Engine struct {
	repo       session.Repository
	classifier Classifier
	extractor  Extractor
	replies    ReplyGenerator
	decider    EndDecider
	summarizer Summarizer
	reports    ReportSubmitter

	cache    *ContextCache
	archiver Archiver
	notifier Notifier

	metrics     *metrics.EngagementMetrics
	logger      *logging.Logger
	tracer      trace.Tracer
	maxMessages int

	locks *keyedMutex
	now   func() time.Time
}

func NewEngine(p EngineParams) *Engine {
	if p.Repo == nil {
		panic("honeypot: engine repository cannot be nil")
	}
	if p.Classifier == nil {
		panic("honeypot: engine classifier cannot be nil")
	}
	if p.Extractor == nil {
		panic("honeypot: engine extractor cannot be nil")
	}
	if p.Replies == nil {
		panic("honeypot: engine reply generator cannot be nil")
	}
	if p.Decider == nil {
		panic("honeypot: engine end decider cannot be nil")
	}
	if p.Summarizer == nil {
		panic("honeypot: engine summarizer cannot be nil")
	}
	if p.Reports == nil {
		panic("honeypot: engine report submitter cannot be nil")
	}
	if p.Logger == nil {
		p.Logger = logging.Default()
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer("honeypot.internal.engine")
	}
	if p.MaxMessages <= 0 {
		p.MaxMessages = defaultMaxMessages
	}

	return &Engine{
		repo:        p.Repo,
		classifier:  p.Classifier,
		extractor:   p.Extractor,
		replies:     p.Replies,
		decider:     p.Decider,
		summarizer:  p.Summarizer,
		reports:     p.Reports,
		cache:       p.Cache,
		archiver:    p.Archiver,
		notifier:    p.Notifier,
		metrics:     p.Metrics,
		logger:      p.Logger,
		tracer:      p.Tracer,
		maxMessages: p.MaxMessages,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// Engage routes one inbound message: continue the session if it is active,
// return a holding line if it has ended or is being swept, otherwise classify
// the first contact and either acknowledge a human or start an engagement.
func (e *Engine) Engage(ctx context.Context, req EngageRequest) (EngageResponse, error) {
	ctx, span := e.tracer.Start(ctx, "honeypot.engage")
	defer span.End()

	start := e.now()
	unlock := e.locks.lock(req.SessionID)
	defer unlock()

	sess, err := e.repo.Get(ctx, req.SessionID)
	switch {
	case err == nil:
		if sess.Status != session.StatusActive {
			e.metrics.ObserveTurn("held", e.now().Sub(start).Seconds())
			return e.heldResponse(sess), nil
		}
		resp, err := e.processTurn(ctx, sess, req)
		if err != nil {
			e.metrics.ObserveTurn("error", e.now().Sub(start).Seconds())
			return EngageResponse{}, err
		}
		if resp.Status == "ended" {
			e.metrics.ObserveTurn("ended", e.now().Sub(start).Seconds())
		} else {
			e.metrics.ObserveTurn("continued", e.now().Sub(start).Seconds())
		}
		return resp, nil

	case errors.Is(err, session.ErrSessionNotFound):
		resp, err := e.firstContact(ctx, req)
		if err != nil {
			e.metrics.ObserveTurn("error", e.now().Sub(start).Seconds())
			return EngageResponse{}, err
		}
		if resp.Classification == string(VerdictHuman) {
			e.metrics.ObserveTurn("human", e.now().Sub(start).Seconds())
		} else {
			e.metrics.ObserveTurn("started", e.now().Sub(start).Seconds())
		}
		return resp, nil

	default:
		e.metrics.ObserveTurn("error", e.now().Sub(start).Seconds())
		return EngageResponse{}, err
	}
}

func (e *Engine) firstContact(ctx context.Context, req EngageRequest) (EngageResponse, error) {
	verdict := e.classifier.Classify(ctx, req.Text, req.ConversationHistory, req.Metadata.Channel)

	if verdict == VerdictHuman {
		// No session for humans; still file the detection.
		if err := e.reports.Enqueue(ctx, report.HumanDetection(req.SessionID)); err != nil {
			e.logger.Warn("human-detection report enqueue failed",
				"session_id", req.SessionID,
				"error", err,
			)
		}
		return EngageResponse{
			Status:                 "success",
			Classification:         string(VerdictHuman),
			Reply:                  humanReply,
			TotalMessagesExchanged: 1,
		}, nil
	}

	return e.startSession(ctx, req)
}

func (e *Engine) startSession(ctx context.Context, req EngageRequest) (EngageResponse, error) {
	now := e.now()
	sess := session.New(req.SessionID, req.Metadata, now)
	sess.AppendInbound(req.Text, now)

	extracted, reply := e.fanOut(ctx, sess, req)
	sess.MergeIntelligence(extracted)
	sess.AppendReply(reply, e.now())

	if err := e.repo.Create(ctx, sess); err != nil {
		return EngageResponse{}, err
	}
	e.saveContext(ctx, sess)

	e.logger.Info("engagement started",
		"session_id", sess.SessionID,
		"channel", sess.Metadata.Channel,
	)

	return EngageResponse{
		Status:         "success",
		Classification: string(VerdictScammer),
		Reply:          reply,
		SessionID:      sess.SessionID,
		SessionActive:  true,
	}, nil
}

func (e *Engine) processTurn(ctx context.Context, sess *session.Session, req EngageRequest) (EngageResponse, error) {
	ctx, span := e.tracer.Start(ctx, "honeypot.process_turn")
	defer span.End()

	sess.AppendInbound(req.Text, e.now())

	extracted, reply := e.fanOut(ctx, sess, req)
	sess.MergeIntelligence(extracted)

	decision := e.decider.Evaluate(ctx, sess.TotalMessages, sess.ExtractedIntelligence, req.Text, reply)

	sess.AppendReply(reply, e.now())

	reportDue := false
	if decision.Finalize && sess.ShouldFinalize() {
		kind := "initial"
		if sess.Finalized {
			kind = "refinalize"
		}
		sess.MarkFinalized(decision.Notes)
		reportDue = true
		e.metrics.ObserveFinalization(kind)
		e.logger.Info("engagement finalized",
			"session_id", sess.SessionID,
			"kind", kind,
			"reason", decision.Reason,
		)
	}

	ended := false
	if sess.TotalMessages >= e.maxMessages {
		notes := sess.AgentNotes
		if notes == "" {
			notes = e.summarizer.Summarize(ctx, sess)
		}
		sess.End(session.EndReasonMessageLimit, notes, e.now())
		// Every session end files a final bundle, even when an earlier soft
		// finalize already reported: intelligence can keep growing within
		// categories the snapshot already counted.
		sess.MarkFinalized(notes)
		reportDue = true
		ended = true
	}

	if err := e.repo.Put(ctx, sess); err != nil {
		return EngageResponse{}, err
	}

	if reportDue {
		e.fileReport(ctx, sess)
	}

	if ended {
		e.archive(ctx, sess)
		e.dropContext(ctx, sess.SessionID)
		e.logger.Info("engagement ended",
			"session_id", sess.SessionID,
			"reason", sess.EndReason,
			"messages", sess.TotalMessages,
		)
		return EngageResponse{
			Status:                 "ended",
			Reply:                  reply,
			SessionID:              sess.SessionID,
			ScamDetected:           true,
			TotalMessagesExchanged: sess.TotalMessages,
			ExtractedIntelligence:  &sess.ExtractedIntelligence,
			AgentNotes:             sess.AgentNotes,
			EndReason:              sess.EndReason,
		}, nil
	}

	e.saveContext(ctx, sess)

	return EngageResponse{
		Status:        "success",
		Reply:         reply,
		SessionID:     sess.SessionID,
		SessionActive: true,
	}, nil
}

// fanOut runs extraction and reply generation concurrently over the post-
// inbound transcript. Both degrade to their fallback values; a turn never
// fails because a collaborator did.
func (e *Engine) fanOut(ctx context.Context, sess *session.Session, req EngageRequest) (session.Intelligence, string) {
	// Generation reads whichever transcript is more complete: the stored one
	// or the caller-supplied one.
	genHistory := sess.ConversationHistory
	if len(req.ConversationHistory) > len(genHistory) {
		genHistory = req.ConversationHistory
	}

	// Extraction context is the cached pre-turn suffix when available. Both
	// collaborators see the pre-turn intelligence; the merge lands after both
	// return.
	recent := e.recentContext(ctx, sess)
	preIntel := sess.ExtractedIntelligence

	var (
		wg         sync.WaitGroup
		extracted  session.Intelligence
		extractErr error
		reply      string
		replyErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		extracted, extractErr = e.extractor.Extract(ctx, req.Text, recent)
	}()
	go func() {
		defer wg.Done()
		reply, replyErr = e.replies.GenerateReply(ctx, req.Text, genHistory, preIntel, sess.Metadata.Channel)
	}()
	wg.Wait()

	if extractErr != nil {
		e.logger.Warn("extraction failed, proceeding without new intelligence",
			"session_id", sess.SessionID,
			"error", extractErr,
		)
		extracted = session.Intelligence{}
	}
	if replyErr != nil || reply == "" {
		if replyErr != nil {
			e.logger.Warn("reply generation failed, using canned line",
				"session_id", sess.SessionID,
				"error", replyErr,
			)
		}
		reply = fallbackReply
	}
	return extracted, reply
}

// EndSession manually closes an active session, files its report, and
// archives it.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*session.Session, error) {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	sess, err := e.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return sess, nil
	}

	notes := e.summarizer.Summarize(ctx, sess)
	sess.End(session.EndReasonManual, notes, e.now())
	sess.MarkFinalized(notes)

	if err := e.repo.Put(ctx, sess); err != nil {
		return nil, err
	}

	e.fileReport(ctx, sess)
	e.archive(ctx, sess)
	e.dropContext(ctx, sessionID)

	e.logger.Info("engagement ended manually", "session_id", sessionID)
	return sess, nil
}

// GetSession returns the stored aggregate for admin views.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return e.repo.Get(ctx, sessionID)
}

func (e *Engine) heldResponse(sess *session.Session) EngageResponse {
	return EngageResponse{
		Status:                 "success",
		Reply:                  holdingReply,
		SessionID:              sess.SessionID,
		TotalMessagesExchanged: sess.TotalMessages,
		ExtractedIntelligence:  &sess.ExtractedIntelligence,
		AgentNotes:             sess.AgentNotes,
		EndReason:              sess.EndReason,
	}
}

func (e *Engine) fileReport(ctx context.Context, sess *session.Session) {
	bundle := report.FromSession(sess, e.now())
	if err := e.reports.Enqueue(ctx, bundle); err != nil {
		e.logger.Error("report enqueue failed",
			"session_id", sess.SessionID,
			"error", err,
		)
		return
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyReportFiled(ctx, bundle); err != nil {
			e.logger.Warn("report notification failed",
				"session_id", sess.SessionID,
				"error", err,
			)
		}
	}
}

func (e *Engine) archive(ctx context.Context, sess *session.Session) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.ArchiveSession(ctx, sess); err != nil {
		e.logger.Warn("session archive failed",
			"session_id", sess.SessionID,
			"error", err,
		)
	}
}

func (e *Engine) saveContext(ctx context.Context, sess *session.Session) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Save(ctx, sess.SessionID, sess.ConversationHistory); err != nil {
		e.logger.Warn("context cache save failed",
			"session_id", sess.SessionID,
			"error", err,
		)
	}
}

// recentContext returns the transcript suffix used as prompt context,
// preferring the cached window over the full stored history.
func (e *Engine) recentContext(ctx context.Context, sess *session.Session) []session.TranscriptEntry {
	if e.cache == nil {
		return sess.ConversationHistory
	}
	suffix, err := e.cache.Load(ctx, sess.SessionID)
	if err != nil {
		e.logger.Warn("context cache load failed",
			"session_id", sess.SessionID,
			"error", err,
		)
		return sess.ConversationHistory
	}
	if len(suffix) == 0 {
		return sess.ConversationHistory
	}
	return suffix
}

func (e *Engine) dropContext(ctx context.Context, sessionID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Drop(ctx, sessionID); err != nil {
		e.logger.Warn("context cache drop failed",
			"session_id", sessionID,
			"error", err,
		)
	}
}

// keyedMutex serializes turns per session within this process. The sweeper's
// conditional update remains the only cross-process guard.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry := k.entries[key]
	if entry == nil {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
