// Package ctxmeta — метаданные запроса в context.Context: request id,
// id отложенной операции, ресторан и активная трасса.
// HTTP-слой, фоновая синхронизация и логгер зависят от него, но не друг от друга.
package ctxmeta

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// key — типизированный ключ; разные экземпляры не пересекаются даже с одинаковым именем.
type key[T comparable] struct{ name string }

var (
	requestIDKey    = &key[string]{"request_id"}
	operationIDKey  = &key[string]{"operation_id"}
	restaurantIDKey = &key[string]{"restaurant_id"}
)

func with[T comparable](ctx context.Context, k *key[T], v T) context.Context {
	var zero T
	if ctx == nil || v == zero {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func from[T comparable](ctx context.Context, k *key[T]) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(k).(T)
	if !ok || v == zero {
		return zero, false
	}
	return v, true
}

// WithRequestID — пустой id контекст не меняет.
func WithRequestID(ctx context.Context, id string) context.Context { return with(ctx, requestIDKey, id) }

func RequestIDFromContext(ctx context.Context) (string, bool) { return from(ctx, requestIDKey) }

// WithOperationID — id отложенной операции фоновой синхронизации.
func WithOperationID(ctx context.Context, id string) context.Context {
	return with(ctx, operationIDKey, id)
}

func OperationIDFromContext(ctx context.Context) (string, bool) { return from(ctx, operationIDKey) }

func WithRestaurantID(ctx context.Context, id string) context.Context {
	return with(ctx, restaurantIDKey, id)
}

func RestaurantIDFromContext(ctx context.Context) (string, bool) { return from(ctx, restaurantIDKey) }

// TraceIDFromContext — trace id активного спана; без трейсинга спан невалиден.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return "", false
	}
	return sc.TraceID().String(), true
}

func SpanIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return "", false
	}
	return sc.SpanID().String(), true
}

// Fields — пары ключ/значение для структурного лога, только присутствующие.
func Fields(ctx context.Context) []any {
	var out []any
	for _, k := range []*key[string]{requestIDKey, operationIDKey, restaurantIDKey} {
		if v, ok := from(ctx, k); ok {
			out = append(out, k.name, v)
		}
	}
	if id, ok := TraceIDFromContext(ctx); ok {
		out = append(out, "trace_id", id)
	}
	return out
}
