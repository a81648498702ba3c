package transport

import (
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/logging"
	"github.com/Chichichkin/CloudWatchShipper/internal/logging/flush"
	"github.com/Chichichkin/CloudWatchShipper/internal/logging/queue"
	"github.com/Chichichkin/CloudWatchShipper/internal/logging/stream"
)

// MessageKey is the reserved record key consulted before the conventional
// "message" key when extracting the log line from a structured record.
const MessageKey = "@message"

type Config struct {
	LogGroupName  string
	StreamPrefix  string
	FlushInterval time.Duration
	// BatchSize is accepted for config compatibility but never consulted:
	// batches are always sized by the fixed PutLogEvents limits.
	BatchSize int
}

// Transport is the producer-facing surface: records go in via Enqueue without
// ever blocking on the network, and the flush timer ships them to the sink.
type Transport struct {
	queue       *queue.EventQueue
	coordinator *flush.Coordinator
}

// New validates the configuration, wires the queue, stream provider and flush
// coordinator, and starts the flush timer. No network calls happen here.
func New(client logging.SinkClient, cfg Config) (*Transport, error) {
	provider, err := stream.New(cfg.LogGroupName, cfg.StreamPrefix, client)
	if err != nil {
		return nil, err
	}

	q := queue.New()
	coordinator := flush.New(q, provider, client, cfg.LogGroupName, cfg.FlushInterval)
	coordinator.Start()

	return &Transport{queue: q, coordinator: coordinator}, nil
}

// Enqueue buffers the record's message and acks unconditionally: queueing
// never fails observably to the producer.
func (t *Transport) Enqueue(record map[string]any, ack func()) {
	if ack != nil {
		defer ack()
	}
	t.queue.Add(extractMessage(record))
}

// extractMessage resolves the log line from a structured record: the reserved
// marker key wins, then the conventional "message" key, then empty text.
func extractMessage(record map[string]any) string {
	if message, ok := record[MessageKey].(string); ok {
		return message
	}
	if message, ok := record["message"].(string); ok {
		return message
	}
	return ""
}

func (t *Transport) Queue() *queue.EventQueue {
	return t.queue
}

// Close flushes everything currently queued and releases the sink client.
func (t *Transport) Close() error {
	return t.coordinator.Close()
}
