package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func TestNormalize(t *testing.T) {
	got := normalize(Options{SampleRatio: 3})
	require.Equal(t, defaultEndpoint, got.Endpoint)
	require.Equal(t, "resto-sync", got.ServiceName)
	require.InDelta(t, 1.0, got.SampleRatio, 1e-9)

	got = normalize(Options{ServiceName: "api", Endpoint: "jaeger:4318", SampleRatio: -1})
	require.Equal(t, "jaeger:4318", got.Endpoint)
	require.Equal(t, "api", got.ServiceName)
	require.Zero(t, got.SampleRatio)
}

func TestNewResource_Version(t *testing.T) {
	res := newResource(Options{ServiceName: "api", Version: "v1.1.0"})

	v, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	require.Equal(t, "v1.1.0", v.AsString())

	res = newResource(Options{ServiceName: "api"})
	_, ok = res.Set().Value(semconv.ServiceVersionKey)
	require.False(t, ok)

	name, ok := res.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	require.Equal(t, "api", name.AsString())
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop(context.Background()))
}
