package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
	"github.com/dietdesk/planner-core/internal/metrics"
)

// Operation is a write operation run by the OperationQueue
type Operation func(ctx context.Context) error

// Ticket tracks one enqueued operation
type Ticket struct {
	seq  uint64
	done chan struct{}
	err  error
}

// Seq is the submission position of the operation
func (t *Ticket) Seq() uint64 {
	return t.seq
}

// Done is closed once the operation has run
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the operation has run and returns its error.
// Cancelling ctx stops the wait, not the operation.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the operation error. Only meaningful once Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Ticket) finish(err error) {
	t.err = err
	close(t.done)
}

type queuedOp struct {
	op     Operation
	ticket *Ticket
}

// OperationQueueConfig holds configuration for an OperationQueue
type OperationQueueConfig struct {
	// Name identifies the queue in logs and lock names (usually the document ID)
	Name string

	// Lock, when set, is held around every operation so that only one
	// instance writes the document at a time
	Lock driven.DistributedLock

	// LockTTL is the TTL requested for the lock (default 30s)
	LockTTL time.Duration

	// LockWait is how long to poll for the lock before failing (default 5s)
	LockWait time.Duration

	// OpTimeout bounds each operation (default 15s)
	OpTimeout time.Duration

	Logger *slog.Logger
}

// OperationQueue runs write operations one at a time in submission order.
// A failing operation reports its error on its ticket and never blocks or
// cancels the operations queued after it.
type OperationQueue struct {
	name      string
	lock      driven.DistributedLock
	lockTTL   time.Duration
	lockWait  time.Duration
	opTimeout time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending []*queuedOp
	nextSeq uint64
	closed  bool
	wake    chan struct{}
	doneCh  chan struct{}
}

// NewOperationQueue creates a queue and starts its draining goroutine
func NewOperationQueue(cfg OperationQueueConfig) *OperationQueue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	lockWait := cfg.LockWait
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 15 * time.Second
	}

	q := &OperationQueue{
		name:      cfg.Name,
		lock:      cfg.Lock,
		lockTTL:   lockTTL,
		lockWait:  lockWait,
		opTimeout: opTimeout,
		logger:    logger.With("queue", cfg.Name),
		wake:      make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}

	go q.drain()
	return q
}

// Enqueue appends op to the queue and returns its ticket
func (q *OperationQueue) Enqueue(op Operation) *Ticket {
	q.mu.Lock()
	q.nextSeq++
	ticket := &Ticket{seq: q.nextSeq, done: make(chan struct{})}
	if q.closed {
		q.mu.Unlock()
		ticket.finish(domain.ErrQueueClosed)
		return ticket
	}
	q.pending = append(q.pending, &queuedOp{op: op, ticket: ticket})
	q.mu.Unlock()

	metrics.QueueEnqueued()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return ticket
}

// Do enqueues op and waits for it to finish
func (q *OperationQueue) Do(ctx context.Context, op Operation) error {
	return q.Enqueue(op).Wait(ctx)
}

// Pending returns the number of operations not yet started
func (q *OperationQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting operations, runs what is already queued and waits
func (q *OperationQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.doneCh
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.doneCh
}

// drain is the single consumer of the queue
func (q *OperationQueue) drain() {
	defer close(q.doneCh)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		metrics.QueueDequeued()
		next.ticket.finish(q.run(next))
	}
}

// run executes one operation under the optional lock, recovering panics
func (q *OperationQueue) run(item *queuedOp) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.opTimeout)
	defer cancel()

	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: operation %d panicked: %v", domain.ErrConcurrencyConflict, item.ticket.seq, r)
		}
		if err != nil {
			q.logger.Error("queued operation failed",
				"seq", item.ticket.seq,
				"duration", time.Since(startTime),
				"error", err,
			)
		}
	}()

	if q.lock != nil {
		lockName := "planner:doc:" + q.name
		if err := q.acquire(ctx, lockName); err != nil {
			return err
		}
		defer func() {
			if relErr := q.lock.Release(context.Background(), lockName); relErr != nil {
				q.logger.Warn("failed to release document lock", "error", relErr)
			}
		}()
	}

	return item.op(ctx)
}

// acquire polls the distributed lock until it is held or LockWait elapses
func (q *OperationQueue) acquire(ctx context.Context, name string) error {
	deadline := time.Now().Add(q.lockWait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		acquired, err := q.lock.Acquire(ctx, name, q.lockTTL)
		if err != nil {
			return fmt.Errorf("%w: acquire %s: %v", domain.ErrPersistence, name, err)
		}
		if acquired {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: document lock %s held by another writer", domain.ErrConcurrencyConflict, name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
