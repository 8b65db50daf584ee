package telemetry

import (
	"testing"
	"time"

	"github.com/amp-labs/amp-fsm/envutil"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_Endpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		kubernetesHost   string
		customEndpoint   string
		expectedEndpoint string
	}{
		{
			name:             "kubernetes detected",
			kubernetesHost:   "10.0.0.1",
			expectedEndpoint: kubernetesEndpoint,
		},
		{
			name:             "outside kubernetes",
			expectedEndpoint: "",
		},
		{
			name:             "custom endpoint wins",
			kubernetesHost:   "10.0.0.1",
			customEndpoint:   "http://custom-collector:4318",
			expectedEndpoint: "http://custom-collector:4318",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			if tt.kubernetesHost != "" {
				ctx = envutil.WithEnvOverride(ctx, "KUBERNETES_SERVICE_HOST", tt.kubernetesHost)
			}

			if tt.customEndpoint != "" {
				ctx = envutil.WithEnvOverride(ctx, "OTEL_EXPORTER_OTLP_ENDPOINT", tt.customEndpoint)
			}

			config, err := LoadConfigFromEnv(ctx, "dev")
			require.NoError(t, err)

			if tt.kubernetesHost == "" && tt.customEndpoint == "" {
				// The host environment may itself be a cluster.
				return
			}

			assert.Equal(t, tt.expectedEndpoint, config.Endpoint)
		})
	}
}

func TestLoadConfigFromEnv_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromEnv(envutil.WithEnvOverride(t.Context(), "OTEL_EXPORTER_OTLP_ENDPOINT", "grpc://collector:4317"), "dev")
	require.ErrorIs(t, err, ErrInvalidEndpoint)
	require.ErrorIs(t, err, envutil.ErrBadEnvVar)

	_, err = LoadConfigFromEnv(envutil.WithEnvOverride(t.Context(), "OTEL_EXPORTER_OTLP_ENDPOINT", "collector"), "dev")
	require.ErrorIs(t, err, envutil.ErrBadEnvVar)
}

func TestLoadConfigFromEnv_Values(t *testing.T) {
	t.Parallel()

	ctx := logger.WithSubsystem(t.Context(), "fsmctl")
	ctx = envutil.WithEnvOverride(ctx, "OTEL_ENABLED", "true")
	ctx = envutil.WithEnvOverride(ctx, "OTEL_LOGS_ENABLED", "true")
	ctx = envutil.WithEnvOverride(ctx, "OTEL_SERVICE_VERSION", "2.1.0")
	ctx = envutil.WithEnvOverride(ctx, "OTEL_EXPORTER_OTLP_TIMEOUT", "2s")

	config, err := LoadConfigFromEnv(ctx, "test")
	require.NoError(t, err)

	assert.True(t, config.Enabled)
	assert.True(t, config.Logs)
	assert.Equal(t, "2.1.0", config.ServiceVersion)
	assert.Equal(t, 2*time.Second, config.Timeout)
	assert.Equal(t, "test", config.Environment)

	ctx = envutil.WithEnvOverride(ctx, "OTEL_SERVICE_NAME", "")
	config, err = LoadConfigFromEnv(ctx, "test")
	require.NoError(t, err)
	assert.Empty(t, config.ServiceName)

	_, err = LoadConfigFromEnv(envutil.WithEnvOverride(t.Context(), "OTEL_ENABLED", "sometimes"), "test")
	require.ErrorIs(t, err, envutil.ErrBadEnvVar)
}

func TestInitialize_Disabled(t *testing.T) {
	t.Parallel()

	require.NoError(t, Initialize(t.Context(), &Config{Enabled: false}))
	require.NoError(t, Initialize(t.Context(), &Config{Enabled: true}))
}

func TestInitialize_AndShutdown(t *testing.T) { //nolint:paralleltest
	config := &Config{
		ServiceName:    "fsm-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		Endpoint:       "http://127.0.0.1:4318",
		Enabled:        true,
		Logs:           true,
		Timeout:        100 * time.Millisecond,
	}

	require.NoError(t, Initialize(t.Context(), config))
	assert.NotNil(t, tracerProvider)
	assert.NotNil(t, loggerProvider)

	// Nothing was recorded, so flushing has nothing to send.
	require.NoError(t, Shutdown(t.Context()))
	assert.Nil(t, tracerProvider)
	require.NoError(t, Shutdown(t.Context()))
}
