package flush

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/logging"
	"github.com/Chichichkin/CloudWatchShipper/internal/logging/queue"
	"github.com/Chichichkin/CloudWatchShipper/internal/logging/stream"
)

const DefaultInterval = 3 * time.Second

// Coordinator drains the event queue into the sink on a timer. Flush cycles
// are serialized by flushMu: a tick that fires while a cycle is running waits
// for the lock and then finds whatever the running cycle left behind, so at
// most one cycle executes at a time.
type Coordinator struct {
	queue    *queue.EventQueue
	streams  *stream.Provider
	client   logging.SinkClient
	group    string
	interval time.Duration

	flushMu sync.Mutex

	timerMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

func New(q *queue.EventQueue, streams *stream.Provider, client logging.SinkClient, group string, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Coordinator{
		queue:    q,
		streams:  streams,
		client:   client,
		group:    group,
		interval: interval,
	}
}

// Start launches the periodic flush timer, replacing any timer a previous
// Start left running.
func (c *Coordinator) Start() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	c.stopTimerLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop = stop
	c.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Flush(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

func (c *Coordinator) stopTimerLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
}

// Close cancels the timer, drains everything currently queued in one final
// synchronous cycle and releases the sink client. Events enqueued while Close
// runs are not guaranteed to be flushed.
func (c *Coordinator) Close() error {
	c.timerMu.Lock()
	c.stopTimerLocked()
	c.timerMu.Unlock()

	c.Flush(context.Background())
	return c.client.Close()
}

// Flush runs one drain cycle: pull a sink-legal batch, resolve the current
// stream, submit, repeat while the queue reports more pending data. Any error
// aborts the cycle; the in-flight batch is already off the queue and is
// dropped, the remainder waits for the next tick.
func (c *Coordinator) Flush(ctx context.Context) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	for {
		batch, hasMore := c.queue.NextBatch()
		if len(batch) == 0 {
			return
		}

		name, err := c.streams.CurrentStreamName(ctx)
		if err != nil {
			log.Printf("Failed to resolve log stream, dropping batch of %d events: %v", len(batch), err)
			return
		}

		if err := c.client.PutBatch(ctx, c.group, name, batch); err != nil {
			log.Printf("Failed to submit batch of %d events to %s: %v", len(batch), name, err)
			return
		}

		if !hasMore {
			return
		}
	}
}
