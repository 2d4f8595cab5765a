package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoTranscriptEntry mirrors TranscriptEntry with string timestamps so the
// stored shape stays stable regardless of marshaller defaults.
type dynamoTranscriptEntry struct {
	Sender    string `dynamodbav:"sender"`
	Text      string `dynamodbav:"text"`
	Timestamp string `dynamodbav:"timestamp"`
}

// dynamoSessionRecord is the persisted shape of a Session. Timestamps are
// RFC3339Nano strings; lastActivityAt is additionally stored as epoch seconds
// so the idle scan can use a numeric comparison.
type dynamoSessionRecord struct {
	SessionID            string                  `dynamodbav:"sessionId"`
	Status               string                  `dynamodbav:"status"`
	Finalized            bool                    `dynamodbav:"finalized"`
	IntelCountAtFinalize int                     `dynamodbav:"intelCountAtFinalize"`
	ConversationHistory  []dynamoTranscriptEntry `dynamodbav:"conversationHistory"`
	Intelligence         Intelligence            `dynamodbav:"extractedIntelligence"`
	TotalMessages        int                     `dynamodbav:"totalMessages"`
	Metadata             Metadata                `dynamodbav:"metadata"`
	AgentNotes           string                  `dynamodbav:"agentNotes,omitempty"`
	EndReason            string                  `dynamodbav:"endReason,omitempty"`
	CreatedAt            string                  `dynamodbav:"createdAt"`
	LastActivity         string                  `dynamodbav:"lastActivity"`
	LastActivityAt       int64                   `dynamodbav:"lastActivityAt"`
	EndedAt              string                  `dynamodbav:"endedAt,omitempty"`
	TimeoutStartedAt     string                  `dynamodbav:"timeoutStartedAt,omitempty"`
	TimeoutStartedAtTS   int64                   `dynamodbav:"timeoutStartedAtEpoch,omitempty"`
}

// DynamoRepository persists sessions to DynamoDB.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided DynamoDB client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("session: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("session: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Create inserts a new session, failing when the ID is already in use.
func (r *DynamoRepository) Create(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("session: session cannot be nil")
	}

	item, err := attributevalue.MarshalMap(toRecord(s))
	if err != nil {
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sessionId)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("%w: failed to create session: %v", ErrRepositoryUnavailable, err)
	}
	return nil
}

// Get fetches a session by ID.
func (r *DynamoRepository) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session: id required")
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch session: %v", ErrRepositoryUnavailable, err)
	}
	if out.Item == nil {
		return nil, ErrSessionNotFound
	}

	var record dynamoSessionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	return fromRecord(&record), nil
}

// Put performs a full-document upsert of the session.
func (r *DynamoRepository) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("session: session cannot be nil")
	}

	item, err := attributevalue.MarshalMap(toRecord(s))
	if err != nil {
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to persist session: %v", ErrRepositoryUnavailable, err)
	}
	return nil
}

// UpdateStatusIf atomically transitions the status when the stored value
// still equals expect. Returns (false, nil) when another coordinator already
// moved the session.
func (r *DynamoRepository) UpdateStatusIf(ctx context.Context, id string, expect Status, update StatusUpdate) (bool, error) {
	if id == "" {
		return false, errors.New("session: id required")
	}

	names := map[string]string{
		"#status": "status",
	}
	values := map[string]types.AttributeValue{
		":expect": &types.AttributeValueMemberS{Value: string(expect)},
		":status": &types.AttributeValueMemberS{Value: string(update.Status)},
	}
	expression := "SET #status = :status"

	if update.EndReason != "" {
		names["#endReason"] = "endReason"
		values[":endReason"] = &types.AttributeValueMemberS{Value: update.EndReason}
		expression += ", #endReason = :endReason"
	}
	if update.AgentNotes != "" {
		names["#agentNotes"] = "agentNotes"
		values[":agentNotes"] = &types.AttributeValueMemberS{Value: update.AgentNotes}
		expression += ", #agentNotes = :agentNotes"
	}
	if update.EndedAt != nil {
		names["#endedAt"] = "endedAt"
		values[":endedAt"] = &types.AttributeValueMemberS{Value: update.EndedAt.UTC().Format(time.RFC3339Nano)}
		expression += ", #endedAt = :endedAt"
	}
	if update.TimeoutStartedAt != nil {
		names["#timeoutStartedAt"] = "timeoutStartedAt"
		values[":timeoutStartedAt"] = &types.AttributeValueMemberS{Value: update.TimeoutStartedAt.UTC().Format(time.RFC3339Nano)}
		expression += ", #timeoutStartedAt = :timeoutStartedAt"
		names["#timeoutStartedAtEpoch"] = "timeoutStartedAtEpoch"
		values[":timeoutStartedAtEpoch"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", update.TimeoutStartedAt.UTC().Unix())}
		expression += ", #timeoutStartedAtEpoch = :timeoutStartedAtEpoch"
	}
	if update.Finalized != nil {
		names["#finalized"] = "finalized"
		values[":finalized"] = &types.AttributeValueMemberBOOL{Value: *update.Finalized}
		expression += ", #finalized = :finalized"
	}
	if update.IntelCountAtFinalize != nil {
		names["#intelCount"] = "intelCountAtFinalize"
		values[":intelCount"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", *update.IntelCountAtFinalize)}
		expression += ", #intelCount = :intelCount"
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(sessionId) AND #status = :expect"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to update session %s: %v", ErrRepositoryUnavailable, id, err)
	}
	return true, nil
}

// ListIdle scans for active sessions whose last activity predates olderThan.
func (r *DynamoRepository) ListIdle(ctx context.Context, olderThan time.Time, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}

	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#status = :active AND lastActivityAt < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":active": &types.AttributeValueMemberS{Value: string(StatusActive)},
			":cutoff": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", olderThan.UTC().Unix())},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan idle sessions: %v", ErrRepositoryUnavailable, err)
	}

	sessions := make([]*Session, 0, len(out.Items))
	for _, item := range out.Items {
		var record dynamoSessionRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			r.logger.Error("failed to decode idle session, skipping", "error", err)
			continue
		}
		sessions = append(sessions, fromRecord(&record))
	}
	return sessions, nil
}

// ListStalled scans for claimed sessions whose sweep claim predates
// olderThan. The epoch copy of the claim time keeps the filter numeric, like
// the idle scan.
func (r *DynamoRepository) ListStalled(ctx context.Context, olderThan time.Time, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}

	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#status = :timeout AND timeoutStartedAtEpoch < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":timeout": &types.AttributeValueMemberS{Value: string(StatusProcessingTimeout)},
			":cutoff":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", olderThan.UTC().Unix())},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan stalled sessions: %v", ErrRepositoryUnavailable, err)
	}

	sessions := make([]*Session, 0, len(out.Items))
	for _, item := range out.Items {
		var record dynamoSessionRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			r.logger.Error("failed to decode stalled session, skipping", "error", err)
			continue
		}
		sessions = append(sessions, fromRecord(&record))
	}
	return sessions, nil
}

func isConditionalCheckFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

func toRecord(s *Session) *dynamoSessionRecord {
	history := make([]dynamoTranscriptEntry, 0, len(s.ConversationHistory))
	for _, entry := range s.ConversationHistory {
		history = append(history, dynamoTranscriptEntry{
			Sender:    entry.Sender,
			Text:      entry.Text,
			Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}

	record := &dynamoSessionRecord{
		SessionID:            s.SessionID,
		Status:               string(s.Status),
		Finalized:            s.Finalized,
		IntelCountAtFinalize: s.IntelCountAtFinalize,
		ConversationHistory:  history,
		Intelligence:         s.ExtractedIntelligence,
		TotalMessages:        s.TotalMessages,
		Metadata:             s.Metadata,
		AgentNotes:           s.AgentNotes,
		EndReason:            s.EndReason,
		CreatedAt:            s.CreatedAt.UTC().Format(time.RFC3339Nano),
		LastActivity:         s.LastActivity.UTC().Format(time.RFC3339Nano),
		LastActivityAt:       s.LastActivity.UTC().Unix(),
	}
	if s.EndedAt != nil {
		record.EndedAt = s.EndedAt.UTC().Format(time.RFC3339Nano)
	}
	if s.TimeoutStartedAt != nil {
		record.TimeoutStartedAt = s.TimeoutStartedAt.UTC().Format(time.RFC3339Nano)
		record.TimeoutStartedAtTS = s.TimeoutStartedAt.UTC().Unix()
	}
	return record
}

func fromRecord(record *dynamoSessionRecord) *Session {
	history := make([]TranscriptEntry, 0, len(record.ConversationHistory))
	for _, entry := range record.ConversationHistory {
		history = append(history, TranscriptEntry{
			Sender:    entry.Sender,
			Text:      entry.Text,
			Timestamp: parseStoredTime(entry.Timestamp),
		})
	}

	s := &Session{
		SessionID:             record.SessionID,
		Status:                Status(record.Status),
		Finalized:             record.Finalized,
		IntelCountAtFinalize:  record.IntelCountAtFinalize,
		ConversationHistory:   history,
		ExtractedIntelligence: record.Intelligence,
		TotalMessages:         record.TotalMessages,
		Metadata:              record.Metadata,
		AgentNotes:            record.AgentNotes,
		EndReason:             record.EndReason,
		CreatedAt:             parseStoredTime(record.CreatedAt),
		LastActivity:          parseStoredTime(record.LastActivity),
	}
	if record.EndedAt != "" {
		ended := parseStoredTime(record.EndedAt)
		s.EndedAt = &ended
	}
	if record.TimeoutStartedAt != "" {
		started := parseStoredTime(record.TimeoutStartedAt)
		s.TimeoutStartedAt = &started
	}
	return s
}

func parseStoredTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
