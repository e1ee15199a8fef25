package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTracing(t *testing.T) {
	require.NoError(t, Init(false, "test"))
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	RecordError(span, errors.New("ignored"))
	span.End()

	_, _, ok := TraceFields(ctx)
	assert.False(t, ok)
	assert.NoError(t, Shutdown(context.Background()))
}

func TestEnabledTracing(t *testing.T) {
	require.NoError(t, Init(true, "test"))
	t.Cleanup(func() {
		_ = Shutdown(context.Background())
		enabled = false
		tracer = nil
		tracerProvider = nil
	})

	ctx, span := StartSpan(context.Background(), "import")
	defer span.End()

	traceID, spanID, ok := TraceFields(ctx)
	require.True(t, ok)
	assert.Len(t, traceID, 32)
	assert.Len(t, spanID, 16)
}
