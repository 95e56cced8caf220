package bridge

import (
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/link"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
)

var (
	// ErrQueueFull is returned when a RecorderQueue drops an entry.
	ErrQueueFull = errors.New("recorder queue full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("recorder queue closed")
)

// QueueStats are cumulative RecorderQueue counters.
type QueueStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Errors  uint64 `json:"errors"`
}

// RecorderQueue forwards samples and transitions to a Recorder on its own
// goroutine, in order. Record never blocks: when the buffer is full the entry
// is dropped and ErrQueueFull returned.
type RecorderQueue struct {
	name string
	rec  Recorder
	ch   chan func() error
	done chan struct{}

	mu     sync.Mutex
	closed bool
	stats  QueueStats
}

var _ Recorder = (*RecorderQueue)(nil)

// NewRecorderQueue starts a queue of size entries in front of rec.
func NewRecorderQueue(name string, rec Recorder, size int) *RecorderQueue {
	if size < 1 {
		size = 1
	}
	q := &RecorderQueue{
		name: name,
		rec:  rec,
		ch:   make(chan func() error, size),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Record queues s.
func (q *RecorderQueue) Record(s Sample) error {
	return q.push(func() error { return q.rec.Record(s) })
}

// RecordTransition queues a link transition.
func (q *RecorderQueue) RecordTransition(simTime time.Duration, t link.Transition) error {
	return q.push(func() error { return q.rec.RecordTransition(simTime, t) })
}

func (q *RecorderQueue) push(f func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- f:
		return nil
	default:
		q.stats.Dropped++
		return ErrQueueFull
	}
}

func (q *RecorderQueue) run() {
	defer close(q.done)
	for f := range q.ch {
		err := f()
		q.mu.Lock()
		if err != nil {
			q.stats.Errors++
		} else {
			q.stats.Written++
		}
		n := q.stats.Errors
		q.mu.Unlock()

		if err != nil && (n == 1 || n%1000 == 0) {
			monitoring.Logf("[%s] recorder: %v (%d errors)", q.name, err, n)
		}
	}
}

// Stats returns the cumulative counters.
func (q *RecorderQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close stops accepting entries and waits until everything queued has been
// handed to the Recorder. It is safe to call more than once.
func (q *RecorderQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
	return nil
}
