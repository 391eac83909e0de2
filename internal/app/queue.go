package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/termstream/internal/domain"
)

// ErrQueueClosed is returned by Push after the end-of-stream marker was pushed.
var ErrQueueClosed = errors.New("termstream: batch queue closed")

// BatchSource is the consumer side of a batch queue.
type BatchSource interface {
	// Pop returns the next batch. ok is false when timeout elapsed with
	// nothing to return. Once the end-of-stream marker was returned, every
	// later Pop returns it again. A timeout <= 0 waits until a batch
	// arrives or ctx is done.
	Pop(ctx context.Context, timeout time.Duration) (batch domain.TermBatch, ok bool, err error)
}

// Queue hands batches from one producer to one worker in FIFO order.
// Push never blocks.
type Queue interface {
	BatchSource
	Push(b domain.TermBatch) error
	Len() int
}

// fifo is the unbounded buffer shared by both queue flavours.
// Callers hold the owning queue's mutex.
type fifo struct {
	items   []domain.TermBatch
	closed  bool // end-of-stream pushed
	drained bool // end-of-stream popped
}

func (f *fifo) push(b domain.TermBatch) error {
	if f.closed {
		return ErrQueueClosed
	}
	f.items = append(f.items, b)
	if b.IsEnd() {
		f.closed = true
	}
	return nil
}

func (f *fifo) ready() bool {
	return f.drained || len(f.items) > 0
}

func (f *fifo) pop() domain.TermBatch {
	if f.drained {
		return domain.EndOfStream
	}
	b := f.items[0]
	f.items[0] = domain.TermBatch{}
	f.items = f.items[1:]
	if b.IsEnd() {
		f.drained = true
		f.items = nil
	}
	return b
}

// BlockingQueue parks the consumer goroutine on a condition variable.
type BlockingQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	q    fifo
}

// NewBlockingQueue creates an empty blocking queue.
func NewBlockingQueue() *BlockingQueue {
	q := &BlockingQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends b and wakes the consumer.
func (q *BlockingQueue) Push(b domain.TermBatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.q.push(b); err != nil {
		return err
	}
	q.cond.Signal()
	return nil
}

// Pop blocks until a batch is available, timeout elapses or ctx is done.
func (q *BlockingQueue) Pop(ctx context.Context, timeout time.Duration) (domain.TermBatch, bool, error) {
	wake := func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
	stop := context.AfterFunc(ctx, wake)
	defer stop()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		t := time.AfterFunc(timeout, wake)
		defer t.Stop()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.q.ready() {
		if err := ctx.Err(); err != nil {
			return domain.TermBatch{}, false, err
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return domain.TermBatch{}, false, nil
		}
		q.cond.Wait()
	}
	return q.q.pop(), true, nil
}

// Len returns the number of queued batches.
func (q *BlockingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.q.items)
}

// AsyncQueue lets the consumer wait in a select alongside ctx.
type AsyncQueue struct {
	mu     sync.Mutex
	q      fifo
	signal chan struct{}
}

// NewAsyncQueue creates an empty cooperative queue.
func NewAsyncQueue() *AsyncQueue {
	return &AsyncQueue{signal: make(chan struct{}, 1)}
}

// Push appends b and signals a waiting consumer.
func (q *AsyncQueue) Push(b domain.TermBatch) error {
	q.mu.Lock()
	err := q.q.push(b)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Pop returns the next batch, waiting on the push signal.
func (q *AsyncQueue) Pop(ctx context.Context, timeout time.Duration) (domain.TermBatch, bool, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		q.mu.Lock()
		if q.q.ready() {
			b := q.q.pop()
			q.mu.Unlock()
			return b, true, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-expired:
			return domain.TermBatch{}, false, nil
		case <-ctx.Done():
			return domain.TermBatch{}, false, ctx.Err()
		}
	}
}

// Len returns the number of queued batches.
func (q *AsyncQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.q.items)
}
