package report

import "context"

// pendingReport is one queued bundle awaiting delivery to the sink. DecodeErr
// is set when a queued body could not be decoded back into a Bundle; the
// dispatcher acks and drops such entries instead of retrying them forever.
type pendingReport struct {
	ID        string
	Receipt   string
	Bundle    Bundle
	DecodeErr error
}

// reportQueue is the submission work queue between the engine and the sink
// workers. SQS backs it in production; the in-memory implementation serves
// tests and single-process deployments.
type reportQueue interface {
	Enqueue(ctx context.Context, bundle Bundle) error
	Dequeue(ctx context.Context, maxReports int, waitSeconds int) ([]pendingReport, error)
	Ack(ctx context.Context, receipt string) error
}
