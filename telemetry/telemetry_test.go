package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) { //nolint:paralleltest
	for _, key := range []string{
		"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION",
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_EXPORTER_OTLP_TIMEOUT",
	} {
		unsetenv(t, key)
	}

	cfg, err := LoadConfig("fsmctl")
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "fsmctl", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.TracesEndpoint)
}

func TestLoadConfig_FromEnv(t *testing.T) { //nolint:paralleltest
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "approvals")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://collector:4318/v1/traces")
	t.Setenv("OTEL_EXPORTER_OTLP_TIMEOUT", "2s")

	cfg, err := LoadConfig("fsmctl")
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "approvals", cfg.ServiceName)
	assert.Equal(t, "http://collector:4318/v1/traces", cfg.TracesEndpoint)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestInitialize_Disabled(t *testing.T) {
	t.Parallel()

	tel, err := Initialize(t.Context(), Config{ServiceName: "fsmctl"})
	require.NoError(t, err)

	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, base, tel.Logger(base))
	require.NoError(t, tel.Shutdown(t.Context()))
}

func TestNilTelemetry(t *testing.T) {
	t.Parallel()

	var tel *Telemetry

	base := slog.Default()
	assert.Same(t, base, tel.Logger(base))
	require.NoError(t, tel.Shutdown(t.Context()))
}

func TestFanout(t *testing.T) {
	t.Parallel()

	var info, debug bytes.Buffer

	log := slog.New(fanout{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}).With("machine", "approval")

	log.Debug("guard evaluated")
	log.Info("Transition committed")

	assert.NotContains(t, info.String(), "guard evaluated")
	assert.Contains(t, info.String(), "machine=approval")
	assert.Contains(t, debug.String(), "guard evaluated")
	assert.Contains(t, debug.String(), "Transition committed")

	assert.False(t, fanout{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelError}),
	}.Enabled(context.Background(), slog.LevelInfo))
}

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()

	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestInitialize_Enabled(t *testing.T) { //nolint:paralleltest
	tel, err := Initialize(t.Context(), Config{
		Enabled:        true,
		ServiceName:    "fsmctl",
		TracesEndpoint: "http://127.0.0.1:4318/v1/traces",
		LogsEndpoint:   "http://127.0.0.1:4318/v1/logs",
		Timeout:        time.Second,
	})
	require.NoError(t, err)

	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.NotSame(t, base, tel.Logger(base))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = tel.Shutdown(ctx)
}
