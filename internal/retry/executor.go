// Package retry — повтор операций с экспоненциальной задержкой и джиттером
// поверх github.com/sethvargo/go-retry.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
	goretry "github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 10 * time.Second
)

// Options — MaxAttempts считает и первую попытку: 3 = вызов + 2 повтора.
type Options struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration // 0 — без ограничения на попытку
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	return o
}

// ExhaustedError — все попытки исчерпаны; Err — ошибка последней попытки.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Executor — переиспользуемая политика повторов.
type Executor struct {
	opts   Options
	log    ports.Logger
	jitter func(base time.Duration) time.Duration
	notify func(attempt int, delay time.Duration, err error)
}

type ExecutorOption func(*Executor)

// WithJitter — источник джиттера в [0, base); по умолчанию math/rand/v2.
func WithJitter(fn func(base time.Duration) time.Duration) ExecutorOption {
	return func(e *Executor) { e.jitter = fn }
}

// WithNotify — вызывается перед каждой паузой между попытками.
func WithNotify(fn func(attempt int, delay time.Duration, err error)) ExecutorOption {
	return func(e *Executor) { e.notify = fn }
}

func NewExecutor(opts Options, log ports.Logger, extra ...ExecutorOption) *Executor {
	e := &Executor{
		opts:   opts.withDefaults(),
		log:    log,
		jitter: uniformJitter,
	}
	for _, opt := range extra {
		opt(e)
	}
	return e
}

func (e *Executor) Options() Options { return e.opts }

// Do — Execute для операций без результата.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute — вызывает op до MaxAttempts раз. Перед повтором n (n=0 для первого)
// ждёт min(BaseDelay*2^n + jitter[0,BaseDelay), MaxDelay).
// Permanent-ошибки (apperr.IsPermanent) возвращаются сразу, без пауз.
// После исчерпания попыток — *ExhaustedError.
func Execute[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero      T
		attempts  int
		exhausted bool
		lastErr   error
	)

	capped := goretry.WithCappedDuration(e.opts.MaxDelay, e.backoff(&exhausted))
	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := capped.Next()
		if stop {
			return 0, true
		}
		metrics.RetryAttempts.WithLabelValues("retry").Inc()
		e.log.Warnf(ctx, "retry: attempt %d/%d failed, next in %s: %v", attempts, e.opts.MaxAttempts, next, lastErr)
		if e.notify != nil {
			e.notify(attempts, next, lastErr)
		}
		return next, false
	})

	v, err := goretry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		attempts++
		v, err := WithTimeout(ctx, e.opts.AttemptTimeout, op)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if apperr.IsPermanent(err) {
			return v, err
		}
		return v, goretry.RetryableError(err)
	})

	switch {
	case err == nil:
		metrics.RetryAttempts.WithLabelValues("success").Inc()
		return v, nil
	case exhausted:
		metrics.RetryAttempts.WithLabelValues("exhausted").Inc()
		return zero, &ExhaustedError{Attempts: attempts, Err: err}
	case apperr.IsPermanent(err):
		metrics.RetryAttempts.WithLabelValues("permanent").Inc()
		return zero, err
	default:
		return zero, err
	}
}

// backoff — экспонента от BaseDelay с джиттером; останавливается после MaxAttempts-1 пауз.
func (e *Executor) backoff(exhausted *bool) goretry.Backoff {
	n := 0
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		if n >= e.opts.MaxAttempts-1 {
			*exhausted = true
			return 0, true
		}
		d := e.opts.MaxDelay
		if n < 30 {
			d = e.opts.BaseDelay << n
		}
		n++
		if d < 0 || d > e.opts.MaxDelay {
			d = e.opts.MaxDelay
		}
		return d + e.jitter(e.opts.BaseDelay), false
	})
}

func uniformJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(base)))
}
