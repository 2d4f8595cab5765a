package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/scamshield-ai/honeypot-platform/internal/session"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store archives completed engagements as JSON objects, keyed by end date.
type S3Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewS3Store creates an archive store. If bucket is empty, all operations are
// no-ops.
func NewS3Store(s3Client S3API, bucket string, logger *logging.Logger) *S3Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (s *S3Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveSession writes the full session document to S3.
func (s *S3Store) ArchiveSession(ctx context.Context, sess *session.Session) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("archive: marshal session: %w", err)
	}

	when := time.Now().UTC()
	if sess.EndedAt != nil {
		when = sess.EndedAt.UTC()
	}
	key := fmt.Sprintf("engagements/v1/by-date/%d/%02d/%02d/%s.json",
		when.Year(), when.Month(), when.Day(), sess.SessionID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived engagement to S3",
		"session_id", sess.SessionID,
		"s3_key", key,
		"message_count", sess.TotalMessages,
	)
	return nil
}
