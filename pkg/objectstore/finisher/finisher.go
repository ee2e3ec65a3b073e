// Package finisher implements objectstore.Finisher: a single-worker serial
// completion executor, grounded on the worker/queue/graceful-shutdown shape
// of dittofs's pkg/flusher.BackgroundUploader, but with exactly one worker
// rather than a pool — the Session Map relies on completions running in the
// order they were submitted.
package finisher

import (
	"sync"
	"time"

	"github.com/marmos91/mdsessiond/internal/logger"
	"github.com/marmos91/mdsessiond/pkg/objectstore"
)

// DefaultQueueSize is the default bound on queued-but-not-yet-run
// completions.
const DefaultQueueSize = 1024

// SerialFinisher runs completions one at a time on a single background
// goroutine, in submission order.
type SerialFinisher struct {
	queue     chan objectstore.Completion
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	startOnce sync.Once
}

// New creates a SerialFinisher and starts its worker goroutine. queueSize
// <= 0 uses DefaultQueueSize.
func New(queueSize int) *SerialFinisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	f := &SerialFinisher{
		queue:     make(chan objectstore.Completion, queueSize),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	f.start()
	return f
}

func (f *SerialFinisher) start() {
	f.startOnce.Do(func() {
		f.wg.Add(1)
		go f.run()
		go func() {
			f.wg.Wait()
			close(f.stoppedCh)
		}()
	})
}

func (f *SerialFinisher) run() {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			f.drain()
			return
		case fn, ok := <-f.queue:
			if !ok {
				return
			}
			f.runOne(fn)
		}
	}
}

func (f *SerialFinisher) drain() {
	for {
		select {
		case fn, ok := <-f.queue:
			if !ok {
				return
			}
			f.runOne(fn)
		default:
			return
		}
	}
}

func (f *SerialFinisher) runOne(fn objectstore.Completion) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("finisher: completion panicked", "recovered", r)
		}
	}()
	fn()
}

// Queue schedules fn to run after every previously queued completion. If
// the queue is full, Queue blocks — the Session Map's completions must not
// be silently dropped the way best-effort background uploads can be.
func (f *SerialFinisher) Queue(fn objectstore.Completion) {
	select {
	case f.queue <- fn:
	case <-f.stopCh:
		logger.Warn("finisher: dropping completion queued after close")
	}
}

// Close stops accepting new completions (further Queue calls are dropped)
// and waits up to timeout for the queue to drain.
func (f *SerialFinisher) Close(timeout time.Duration) {
	close(f.stopCh)
	select {
	case <-f.stoppedCh:
	case <-time.After(timeout):
		logger.Warn("finisher: close timed out waiting for drain")
	}
}
