package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		l, err := NewLogger(env)
		require.NoError(t, err, env)
		require.NotNil(t, l)
		assert.NotNil(t, WithOTel(l, "test"))
	}
}

func TestSetupTelemetry_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTelemetry(context.Background(), TelemetryConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}
