package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracing_Disabled(t *testing.T) {
	require.NoError(t, InitTracing(Config{Enabled: false}))

	ctx, span := otel.Tracer(DefaultServiceName).Start(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid())

	// an incoming trace context is still carried through
	carrier := propagation.HeaderCarrier{}
	carrier.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	out := propagation.HeaderCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, out)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", out.Get("traceparent"))

	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitTracing_EnabledWithoutEndpoint(t *testing.T) {
	assert.Error(t, InitTracing(Config{Enabled: true}))
}
