package archive

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// PostgresStore mirrors ended engagements into relational tables for
// analysis. Category sets land in text[] columns, the transcript in a
// per-message table.
type PostgresStore struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewPostgresStore(db *sql.DB, logger *logging.Logger) *PostgresStore {
	if db == nil {
		panic("archive: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// ArchiveSession upserts the engagement row and rewrites its messages in one
// transaction.
func (s *PostgresStore) ArchiveSession(ctx context.Context, sess *session.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	intel := sess.ExtractedIntelligence
	_, err = tx.ExecContext(ctx, `
		INSERT INTO engagements (
			session_id, status, end_reason, agent_notes, total_messages,
			channel, language, locale,
			bank_accounts, upi_ids, phishing_links, phone_numbers,
			email_addresses, suspicious_keywords,
			created_at, ended_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			end_reason = EXCLUDED.end_reason,
			agent_notes = EXCLUDED.agent_notes,
			total_messages = EXCLUDED.total_messages,
			bank_accounts = EXCLUDED.bank_accounts,
			upi_ids = EXCLUDED.upi_ids,
			phishing_links = EXCLUDED.phishing_links,
			phone_numbers = EXCLUDED.phone_numbers,
			email_addresses = EXCLUDED.email_addresses,
			suspicious_keywords = EXCLUDED.suspicious_keywords,
			ended_at = EXCLUDED.ended_at`,
		sess.SessionID,
		string(sess.Status),
		sess.EndReason,
		sess.AgentNotes,
		sess.TotalMessages,
		sess.Metadata.Channel,
		sess.Metadata.Language,
		sess.Metadata.Locale,
		pq.Array(intel.BankAccounts),
		pq.Array(intel.UPIIDs),
		pq.Array(intel.PhishingLinks),
		pq.Array(intel.PhoneNumbers),
		pq.Array(intel.EmailAddresses),
		pq.Array(intel.SuspiciousKeywords),
		sess.CreatedAt,
		sess.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: upsert engagement %s: %w", sess.SessionID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM engagement_messages WHERE session_id = $1`, sess.SessionID); err != nil {
		return fmt.Errorf("archive: clear messages for %s: %w", sess.SessionID, err)
	}

	for _, entry := range sess.ConversationHistory {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO engagement_messages (session_id, sender, body, sent_at)
			VALUES ($1,$2,$3,$4)`,
			sess.SessionID, entry.Sender, entry.Text, entry.Timestamp,
		); err != nil {
			return fmt.Errorf("archive: insert message for %s: %w", sess.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit %s: %w", sess.SessionID, err)
	}

	s.logger.Info("archived engagement to postgres",
		"session_id", sess.SessionID,
		"message_count", sess.TotalMessages,
	)
	return nil
}
