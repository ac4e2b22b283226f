package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/internal/pkg/tracing"
)

func TestTraceIDWithoutSpan(t *testing.T) {
	require.Equal(t, tracing.ZeroTraceID, tracing.TraceID(context.Background()))
	require.Len(t, tracing.ZeroTraceID, 32)
}

func TestTraceIDWithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	id := tracing.TraceID(ctx)
	require.Len(t, id, 32)
	require.NotEqual(t, tracing.ZeroTraceID, id)
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := tracing.Setup(context.Background(), config.Otel{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
