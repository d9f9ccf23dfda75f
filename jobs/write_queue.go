package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"moviecollection/metrics"
	"moviecollection/models"
	"moviecollection/repository"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is full.
	ErrQueueFull = errors.New("write queue is full")
	// ErrQueueStopped is returned once Stop has been called.
	ErrQueueStopped = errors.New("write queue is stopped")
)

// WriteOp is a deferred write. Apply performs one repository call, which is
// atomic on its own.
type WriteOp struct {
	Name    string
	MovieID int
	Apply   func() error
}

type writeRequest struct {
	op      WriteOp
	barrier chan struct{}
}

// WriteQueue applies writes in order on a single background worker.
type WriteQueue struct {
	requests chan writeRequest
	logger   hclog.Logger
	metrics  *metrics.Metrics
	onError  func(WriteOp, error)

	mu      sync.RWMutex
	stopped bool
	pending atomic.Int64
	done    chan struct{}
}

// NewWriteQueue starts a queue buffering up to size writes. onError, when
// set, is called on the worker for every failed write.
func NewWriteQueue(size int, logger hclog.Logger, m *metrics.Metrics, onError func(WriteOp, error)) *WriteQueue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	q := &WriteQueue{
		requests: make(chan writeRequest, size),
		logger:   logger,
		metrics:  m,
		onError:  onError,
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue schedules op without blocking.
func (q *WriteQueue) Enqueue(op WriteOp) error {
	if op.Apply == nil {
		return fmt.Errorf("write %q has no apply function", op.Name)
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}

	q.pending.Add(1)
	select {
	case q.requests <- writeRequest{op: op}:
		q.metrics.QueueOp("enqueued", q.Pending())
		return nil
	default:
		q.pending.Add(-1)
		q.metrics.QueueOp("rejected", q.Pending())
		return ErrQueueFull
	}
}

// Flush blocks until every write enqueued before the call has been applied.
func (q *WriteQueue) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	q.mu.RLock()
	if q.stopped {
		q.mu.RUnlock()
		<-q.done
		return nil
	}
	select {
	case q.requests <- writeRequest{barrier: barrier}:
		q.mu.RUnlock()
	case <-ctx.Done():
		q.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports the number of writes not yet applied.
func (q *WriteQueue) Pending() int {
	return int(q.pending.Load())
}

// Stop rejects new writes, applies everything already queued and waits for
// the worker to exit.
func (q *WriteQueue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.requests)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *WriteQueue) run() {
	defer close(q.done)
	for req := range q.requests {
		if req.barrier != nil {
			close(req.barrier)
			continue
		}
		err := q.apply(req.op)
		q.pending.Add(-1)
		if err != nil {
			q.metrics.QueueOp("failed", q.Pending())
			q.logger.Error("queued write failed", "write", req.op.Name, "movie_id", req.op.MovieID, "error", err)
			if q.onError != nil {
				q.onError(req.op, err)
			}
			continue
		}
		q.metrics.QueueOp("applied", q.Pending())
	}
}

func (q *WriteQueue) apply(op WriteOp) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write %q panicked: %v", op.Name, r)
		}
	}()
	return op.Apply()
}

// RecordWriteFailures returns an error callback that logs failed writes as
// movie events.
func RecordWriteFailures(events *repository.MovieEventRepository, logger hclog.Logger) func(WriteOp, error) {
	return func(op WriteOp, err error) {
		if op.MovieID == 0 {
			return
		}
		if evErr := events.Create(op.MovieID, models.EventWriteFailed,
			fmt.Sprintf("Write %q failed", op.Name),
			map[string]string{"error": err.Error()}); evErr != nil && logger != nil {
			logger.Error("failed to record write failure", "movie_id", op.MovieID, "error", evErr)
		}
	}
}
