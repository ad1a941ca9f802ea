// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"context"
	"sync"
	"time"

	"github.com/segmenttrace/dd-trace-go/internal/log"
)

// defaultFlushInterval matches the agent's own default trace-writer flush
// period.
const defaultFlushInterval = 2 * time.Second

// maxQueuedChunks bounds how many finished chunks can wait for a flush
// before the oldest queued one is evicted to make room, the in-memory
// analogue of the wire-level MaxPayloadSize cap used by the agent's own
// trace writer.
const maxQueuedChunks = 1000

// Collector batches finished trace chunks, msgpack-encodes them, and POSTs
// them to the agent on a schedule, applying any rate-by-service update the
// agent returns to the tracer's sampler.
type Collector struct {
	mu      sync.Mutex
	chunks  []spanList
	dropped int64

	transport Transport
	sampler   *TraceSampler

	flushInterval time.Duration
	scheduler     *eventScheduler
	cancelFlush   func()

	stopOnce sync.Once

	failLog *throttledLogger
}

// NewCollector returns a Collector that flushes to t every interval (0 uses
// defaultFlushInterval), feeding any rate-by-service response into sampler.
func NewCollector(t Transport, sampler *TraceSampler, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	c := &Collector{
		transport:     t,
		sampler:       sampler,
		flushInterval: interval,
		failLog:       newThrottledLogger(5, time.Minute),
	}
	return c
}

// Start begins the periodic flush loop on sched.
func (c *Collector) Start(sched *eventScheduler) {
	c.scheduler = sched
	c.cancelFlush = sched.Every(c.flushInterval, c.flush)
}

// Push enqueues a finished trace chunk for the next flush. If the queue is
// already at capacity, the oldest queued chunk is evicted to make room
// rather than rejecting the one just finished — a trace that just completed
// is more likely to still be interesting than one that has been waiting
// since before the last flush failed.
func (c *Collector) Push(chunk spanList) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) >= maxQueuedChunks {
		c.chunks = c.chunks[1:]
		c.dropped++
		log.Error("evicting oldest trace chunk: %d chunks already queued", len(c.chunks)+1)
	}
	c.chunks = append(c.chunks, chunk)
}

// Flush forces an immediate synchronous flush, used by Stop and by tests.
func (c *Collector) Flush() {
	c.flush()
}

func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.chunks) == 0 {
		c.mu.Unlock()
		return
	}
	chunks := c.chunks
	c.chunks = nil
	dropped := c.dropped
	c.dropped = 0
	c.mu.Unlock()

	if dropped > 0 && len(chunks) > 0 && len(chunks[0]) > 0 {
		first := chunks[0][0]
		first.mu.Lock()
		first.setMetric(keyDroppedSegments, float64(dropped))
		first.mu.Unlock()
	}

	buf := newPayload()
	for _, chunk := range chunks {
		if _, err := buf.push(chunk); err != nil {
			log.Error("failed to encode trace chunk: %s", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rates, err := c.transport.Send(ctx, buf, len(chunks))
	if err != nil {
		c.failLog.Warn("failed to flush %d trace chunks: %s", len(chunks), err)
		if dropped > 0 {
			c.mu.Lock()
			c.dropped += dropped
			c.mu.Unlock()
		}
		return
	}
	if len(rates) > 0 && c.sampler != nil {
		c.sampler.UpdateAgentRates(rates)
	}
}

// Stop cancels the periodic flush and performs one final synchronous flush
// of whatever remains queued, waiting at most timeout.
func (c *Collector) Stop(timeout time.Duration) {
	c.stopOnce.Do(func() {
		if c.cancelFlush != nil {
			c.cancelFlush()
		}
		done := make(chan struct{})
		go func() {
			c.flush()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			log.Error("timed out flushing remaining traces on shutdown")
		}
	})
}

// Dropped returns the number of trace chunks dropped due to queue overflow.
func (c *Collector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// throttledLogger rate-limits a repeated warning over a fixed window: the
// first max calls in a window log at warn level, the next one logs at error
// level, and the rest of that window's calls are dropped. A persistently
// unreachable agent therefore logs a handful of lines per window rather than
// one per flush.
type throttledLogger struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	count    int
	resetsAt time.Time
}

func newThrottledLogger(max int, window time.Duration) *throttledLogger {
	return &throttledLogger{max: max, window: window}
}

func (t *throttledLogger) Warn(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.After(t.resetsAt) {
		t.count = 0
		t.resetsAt = now.Add(t.window)
	}
	t.count++
	if t.count == t.max+1 {
		log.Error(format, args...)
	}
	if t.count > t.max {
		return
	}
	log.Warn(format, args...)
}
