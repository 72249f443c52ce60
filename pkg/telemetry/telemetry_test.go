package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-ledger/pkg/config"
)

func TestSetupDisabledReturnsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false, Endpoint: "http://localhost:4318"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupWithoutEndpointReturnsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
