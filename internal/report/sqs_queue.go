package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSQueue is the submission queue backed by AWS/LocalStack SQS. Bundles
// travel as JSON message bodies tagged with the session ID; a message stays
// on the queue until the dispatcher acks a successful sink submission, so SQS
// redelivery is the retry mechanism.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSQueue creates a submission queue over the provided SQS client.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("report: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("report: SQS queueURL cannot be empty")
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
	}
}

func (q *SQSQueue) Enqueue(ctx context.Context, bundle Bundle) error {
	body, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("report: failed to encode bundle for %s: %w", bundle.SessionID, err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"sessionId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(bundle.SessionID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("report: failed to enqueue bundle for %s: %w", bundle.SessionID, err)
	}
	return nil
}

func (q *SQSQueue) Dequeue(ctx context.Context, maxReports int, waitSeconds int) ([]pendingReport, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxReports),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("report: failed to receive bundles: %w", err)
	}

	pending := make([]pendingReport, 0, len(out.Messages))
	for _, msg := range out.Messages {
		p := pendingReport{
			ID:      aws.ToString(msg.MessageId),
			Receipt: aws.ToString(msg.ReceiptHandle),
		}
		p.DecodeErr = json.Unmarshal([]byte(aws.ToString(msg.Body)), &p.Bundle)
		pending = append(pending, p)
	}
	return pending, nil
}

func (q *SQSQueue) Ack(ctx context.Context, receipt string) error {
	if receipt == "" {
		return nil
	}

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("report: failed to ack bundle: %w", err)
	}
	return nil
}
