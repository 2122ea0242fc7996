package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treechurn/pkg/config"
	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "treechurn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultWalkWeeks, cfg.Walk.Weeks)
	assert.Equal(t, config.DefaultWalkStart, cfg.Walk.Start)
	assert.Equal(t, config.DefaultWalkSubdir, cfg.Walk.Subdir)
	assert.Equal(t, config.DefaultChurnTrackNew, cfg.Churn.TrackNew)
	assert.Equal(t, config.DefaultReducerWorkers, cfg.Reducer.Workers)
	assert.Equal(t, config.DefaultReducerQueueSize, cfg.Reducer.QueueSize)
	assert.Equal(t, config.DefaultRepositoryBackend, cfg.Repository.Backend)
	assert.Equal(t, config.DefaultLoggingLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLoggingFormat, cfg.Logging.Format)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Empty(t, cfg.Telemetry.DiagnosticsAddr)
}

func TestLoadConfig_ValidFileUnmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `walk:
  weeks: 12
  subdir: src/core
churn:
  track_new: true
reducer:
  workers: 6
  queue_size: 24
repository:
  backend: gogit
logging:
  level: debug
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  diagnostics_addr: 127.0.0.1:9464
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Walk.Weeks)
	assert.Equal(t, "src/core", cfg.Walk.Subdir)
	assert.True(t, cfg.Churn.TrackNew)
	assert.Equal(t, 6, cfg.Reducer.Workers)
	assert.Equal(t, 24, cfg.Reducer.QueueSize)
	assert.Equal(t, config.BackendGoGit, cfg.Repository.Backend)
	assert.Equal(t, config.LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.OTLPInsecure)
	assert.Equal(t, "127.0.0.1:9464", cfg.Telemetry.DiagnosticsAddr)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TREECHURN_WALK_WEEKS", "3")
	t.Setenv("TREECHURN_REPOSITORY_BACKEND", "gogit")

	cfg, err := config.LoadConfig(writeConfig(t, "walk:\n  weeks: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Walk.Weeks)
	assert.Equal(t, config.BackendGoGit, cfg.Repository.Backend)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "walk: [\n"))
	require.Error(t, err)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "negative weeks", content: "walk:\n  weeks: -1\n", want: config.ErrInvalidWeeks},
		{name: "start id", content: "walk:\n  start: deadbeef\n", want: vcs.ErrInvalidHash},
		{name: "negative workers", content: "reducer:\n  workers: -2\n", want: config.ErrInvalidWorkers},
		{name: "negative queue", content: "reducer:\n  queue_size: -1\n", want: config.ErrInvalidQueueSize},
		{name: "backend", content: "repository:\n  backend: svn\n", want: config.ErrInvalidBackend},
		{name: "log level", content: "logging:\n  level: loud\n", want: config.ErrInvalidLogLevel},
		{name: "log format", content: "logging:\n  format: xml\n", want: config.ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWalkConfigStartHash(t *testing.T) {
	t.Parallel()

	start, err := config.WalkConfig{}.StartHash()
	require.NoError(t, err)
	assert.True(t, start.IsZero())

	const hexID = "89abcdef0123456789abcdef0123456789abcdef"

	cfg, err := config.LoadConfig(writeConfig(t, "walk:\n  start: "+hexID+"\n"))
	require.NoError(t, err)

	start, err = cfg.Walk.StartHash()
	require.NoError(t, err)
	assert.Equal(t, hexID, start.String())
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "INFO", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
	}

	for _, tt := range tests {
		got, err := config.LoggingConfig{Level: tt.level}.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
