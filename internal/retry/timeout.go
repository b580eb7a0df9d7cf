package retry

import (
	"context"
	"time"

	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

// WithTimeout — гонка op против таймера d. По истечении возвращает ошибку
// с кодом apperr.CodeTimeout; поздний результат op отбрасывается.
// Контекст op отменяется в момент дедлайна. d <= 0 — без ограничения.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return op(ctx)
	}

	var zero T
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(opCtx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, apperr.Wrap(opCtx.Err(), apperr.CodeTimeout, "operation exceeded %s", d)
	}
}
