package logging

import (
	"context"
)

// LogEvent is a single log line plus its capture time in milliseconds since
// the epoch, the unit CloudWatch Logs carries on the wire.
type LogEvent struct {
	Message   string
	Timestamp int64
}

// SinkClient is the remote ingestion API the flush path talks to. All three
// remote operations may fail with a transport-level error.
type SinkClient interface {
	DescribeStreams(ctx context.Context, group, namePrefix string) ([]string, error)
	CreateStream(ctx context.Context, group, name string) error
	PutBatch(ctx context.Context, group, stream string, events []LogEvent) error
	Close() error
}

// Enqueuer accepts structured records from producers. Implementations must
// invoke ack once the record has been taken over, regardless of its content.
type Enqueuer interface {
	Enqueue(record map[string]any, ack func())
}
