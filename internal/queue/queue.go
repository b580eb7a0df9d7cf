// Package queue — пакетная очередь клиентских операций и ограничитель частоты.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 100 * time.Millisecond
)

var ErrQueueClosed = errors.New("operation queue closed")

// Task — операция очереди.
type Task func(ctx context.Context) (any, error)

type Options struct {
	BatchSize  int
	BatchDelay time.Duration
}

type result struct {
	v   any
	err error
}

type task struct {
	ctx  context.Context
	fn   Task
	done chan result
}

// OperationQueue — FIFO задач; обработка пачками по BatchSize, внутри пачки
// задачи выполняются параллельно, между пачками пауза BatchDelay.
// Одновременно работает не больше одного цикла обработки.
type OperationQueue struct {
	opts    Options
	limiter *RateLimiter
	log     ports.Logger

	mu         sync.Mutex
	pending    []*task
	processing bool
	closed     bool
}

type QueueOption func(*OperationQueue)

// WithLimiter — каждая задача перед запуском ждёт слот ограничителя.
func WithLimiter(l *RateLimiter) QueueOption {
	return func(q *OperationQueue) { q.limiter = l }
}

func NewOperationQueue(opts Options, log ports.Logger, extra ...QueueOption) *OperationQueue {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	q := &OperationQueue{opts: opts, log: log}
	for _, opt := range extra {
		opt(q)
	}
	return q
}

// Add — ставит задачу в очередь и ждёт её результата.
// Отмена ctx до запуска задачи снимает её с выполнения.
func (q *OperationQueue) Add(ctx context.Context, fn Task) (any, error) {
	t := &task{ctx: ctx, fn: fn, done: make(chan result, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.pending = append(q.pending, t)
	metrics.QueueDepth.Set(float64(len(q.pending)))
	start := !q.processing
	q.processing = true
	q.mu.Unlock()

	if start {
		go q.process()
	}

	select {
	case r := <-t.done:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do — типизированная обёртка над Add.
func Do[T any](ctx context.Context, q *OperationQueue, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := q.Add(ctx, func(ctx context.Context) (any, error) {
		res, err := fn(ctx)
		return res, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := v.(T)
	return res, nil
}

// Len — задачи, ожидающие запуска.
func (q *OperationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close — новые задачи отклоняются, ожидающие завершаются ErrQueueClosed.
func (q *OperationQueue) Close() {
	q.mu.Lock()
	q.closed = true
	rest := q.pending
	q.pending = nil
	metrics.QueueDepth.Set(0)
	q.mu.Unlock()

	for _, t := range rest {
		t.done <- result{err: ErrQueueClosed}
	}
}

func (q *OperationQueue) process() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		n := min(q.opts.BatchSize, len(q.pending))
		batch := make([]*task, n)
		copy(batch, q.pending[:n])
		q.pending = q.pending[n:]
		metrics.QueueDepth.Set(float64(len(q.pending)))
		q.mu.Unlock()

		var g errgroup.Group
		for _, t := range batch {
			g.Go(func() error {
				q.run(t)
				return nil
			})
		}
		_ = g.Wait()

		q.mu.Lock()
		more := len(q.pending) > 0
		q.mu.Unlock()
		if more && q.opts.BatchDelay > 0 {
			time.Sleep(q.opts.BatchDelay)
		}
	}
}

func (q *OperationQueue) run(t *task) {
	res := q.execute(t)
	label := "ok"
	if res.err != nil {
		label = "error"
	}
	metrics.QueueTasks.WithLabelValues(label).Inc()
	t.done <- res
}

func (q *OperationQueue) execute(t *task) (res result) {
	defer func() {
		if p := recover(); p != nil {
			q.log.Errorf(t.ctx, "operation queue: task panicked: %v", p)
			res = result{err: fmt.Errorf("operation queue: task panicked: %v", p)}
		}
	}()

	if err := t.ctx.Err(); err != nil {
		return result{err: err}
	}
	if q.limiter != nil {
		if err := q.limiter.WaitForSlot(t.ctx); err != nil {
			return result{err: err}
		}
	}
	v, err := t.fn(t.ctx)
	return result{v: v, err: err}
}
