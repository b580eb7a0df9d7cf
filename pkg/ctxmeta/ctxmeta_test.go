package ctxmeta_test

import (
	"context"
	"testing"

	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestIDs_RoundTrip(t *testing.T) {
	parent := context.Background()
	ctx := ctxmeta.WithRequestID(parent, "req-1")
	ctx = ctxmeta.WithOperationID(ctx, "op-7")
	ctx = ctxmeta.WithRestaurantID(ctx, "rest-3")

	id, ok := ctxmeta.RequestIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "req-1", id)
	id, ok = ctxmeta.OperationIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "op-7", id)
	id, ok = ctxmeta.RestaurantIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "rest-3", id)

	// родитель не меняется
	_, ok = ctxmeta.RequestIDFromContext(parent)
	require.False(t, ok)
}

func TestWith_EmptyOrNil(t *testing.T) {
	parent := context.Background()
	require.Equal(t, parent, ctxmeta.WithRequestID(parent, ""))
	require.Equal(t, parent, ctxmeta.WithOperationID(parent, ""))

	var nilCtx context.Context
	require.Nil(t, ctxmeta.WithRequestID(nilCtx, "req-1"))
	_, ok := ctxmeta.RequestIDFromContext(nilCtx)
	require.False(t, ok)
	_, ok = ctxmeta.TraceIDFromContext(nilCtx)
	require.False(t, ok)
}

// Чужие ключи с тем же строковым именем не читаются.
func TestForeignKeyIgnored(t *testing.T) {
	type foreign string
	ctx := context.WithValue(context.Background(), foreign("request_id"), "req-x")
	_, ok := ctxmeta.RequestIDFromContext(ctx)
	require.False(t, ok)
}

func TestTraceAndSpanIDs(t *testing.T) {
	_, ok := ctxmeta.TraceIDFromContext(context.Background())
	require.False(t, ok)
	_, ok = ctxmeta.SpanIDFromContext(context.Background())
	require.False(t, ok)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	traceID, ok := ctxmeta.TraceIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, span.SpanContext().TraceID().String(), traceID)
	spanID, ok := ctxmeta.SpanIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, span.SpanContext().SpanID().String(), spanID)
}

func TestFields(t *testing.T) {
	require.Empty(t, ctxmeta.Fields(context.Background()))

	ctx := ctxmeta.WithOperationID(ctxmeta.WithRequestID(context.Background(), "req-1"), "op-1")
	require.Equal(t, []any{"request_id", "req-1", "operation_id", "op-1"}, ctxmeta.Fields(ctx))
}
