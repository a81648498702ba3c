package queue

import (
	"sync"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/logging"
)

// PutLogEvents limits, fixed by the CloudWatch Logs API:
// https://docs.aws.amazon.com/AmazonCloudWatch/latest/logs/cloudwatch_limits_cwl.html
const (
	MaxBatchBytes     = 1048576
	EventOverhead     = 26
	MaxEventBytes     = MaxBatchBytes - EventOverhead
	MaxEventsPerBatch = 10000
)

const truncatedSuffix = "[TRUNCATED]"

// EventQueue buffers log events in insertion order until the flush path
// drains them. Every stored event fits MaxEventBytes, so any single event is
// always batchable.
type EventQueue struct {
	mu     sync.Mutex
	events []logging.LogEvent
	now    func() time.Time
}

func New() *EventQueue {
	return &EventQueue{now: time.Now}
}

// Add buffers message, truncating it first if its UTF-8 encoding exceeds
// MaxEventBytes. It never fails and never blocks on I/O.
func (q *EventQueue) Add(message string) {
	if len(message) > MaxEventBytes {
		message = truncate(message)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, logging.LogEvent{
		Message:   message,
		Timestamp: q.now().UnixMilli(),
	})
}

// truncate binary-searches the longest rune prefix of message whose byte
// length plus the marker suffix still fits MaxEventBytes. Cutting on rune
// boundaries keeps the result valid UTF-8; sizes are byte lengths, never
// rune counts.
func truncate(message string) string {
	runes := []rune(message)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if len(string(runes[:mid]))+len(truncatedSuffix) <= MaxEventBytes {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo]) + truncatedSuffix
}

// NextBatch removes and returns the longest queue prefix satisfying the
// PutLogEvents byte and count limits, plus whether events remain afterwards.
// The returned events are gone from the queue whether or not the caller
// manages to deliver them.
func (q *EventQueue) NextBatch() ([]logging.LogEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	batchBytes := 0
	for _, event := range q.events {
		if count == MaxEventsPerBatch {
			break
		}
		size := len(event.Message) + EventOverhead
		if batchBytes+size > MaxBatchBytes {
			break
		}
		batchBytes += size
		count++
	}

	batch := make([]logging.LogEvent, count)
	copy(batch, q.events[:count])
	q.events = q.events[count:]

	return batch, len(q.events) > 0
}

// Events returns an independent copy of the buffered events.
func (q *EventQueue) Events() []logging.LogEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	events := make([]logging.LogEvent, len(q.events))
	copy(events, q.events)
	return events
}

func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *EventQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = nil
}
