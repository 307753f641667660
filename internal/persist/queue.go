package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
)

var ErrClosed = errors.New("persist queue closed")

// Queue applies ops to a Persister on one goroutine, in the order they were enqueued.
// Failed ops are reported on Failures and are not retried.
type Queue struct {
	p      Persister
	logger *log.Logger

	mu       sync.Mutex
	pending  []Op
	closed   bool
	wake     chan struct{}
	done     chan struct{}
	failures chan *Error
}

// NewQueue starts the worker. failureBuffer bounds how many unread failures are kept;
// older unread failures are dropped (and logged) once it is full.
func NewQueue(p Persister, logger *log.Logger, failureBuffer int) *Queue {
	if logger == nil {
		logger = log.Default()
	}
	if failureBuffer <= 0 {
		failureBuffer = 64
	}
	q := &Queue{
		p:        p,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		failures: make(chan *Error, failureBuffer),
	}
	go q.run()
	return q
}

// Enqueue never blocks on the backend.
func (q *Queue) Enqueue(ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, ops...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) Failures() <-chan *Error { return q.failures }

// Close stops accepting ops, waits for queued ops to finish and closes Failures.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	defer close(q.failures)

	ctx := context.Background()
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, op := range batch {
			if err := op.apply(ctx, q.p); err != nil {
				q.report(&Error{Op: op, Err: err})
				continue
			}
			q.logger.Debug("persisted", "op", op.Kind, "id", op.Subject())
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

func (q *Queue) report(e *Error) {
	q.logger.Error("persist failed", "op", e.Op.Kind, "id", e.Op.Subject(), "err", e.Err)
	for {
		select {
		case q.failures <- e:
			return
		default:
		}
		// Drop the oldest unread failure to make room.
		select {
		case old := <-q.failures:
			q.logger.Warn("dropping unread persistence failure", "op", old.Op.Kind, "id", old.Op.Subject())
		default:
		}
	}
}
