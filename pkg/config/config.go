// Package config loads treechurn settings from an optional YAML file,
// TREECHURN_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
)

// Sentinel validation errors.
var (
	ErrInvalidWeeks     = errors.New("walk weeks must not be negative")
	ErrInvalidWorkers   = errors.New("reducer workers must not be negative")
	ErrInvalidQueueSize = errors.New("reducer queue size must not be negative")
	ErrInvalidBackend   = errors.New("unknown repository backend")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrInvalidLogFormat = errors.New("unknown log format")
)

const (
	envPrefix         = "TREECHURN"
	defaultConfigName = ".treechurn"
)

// Config holds all treechurn settings.
type Config struct {
	Walk       WalkConfig       `mapstructure:"walk"`
	Churn      ChurnConfig      `mapstructure:"churn"`
	Reducer    ReducerConfig    `mapstructure:"reducer"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// WalkConfig bounds the history walk.
type WalkConfig struct {
	// Start is the full id of the commit the walk begins at. Empty means HEAD.
	Start  string `mapstructure:"start"`
	Subdir string `mapstructure:"subdir"`
	Weeks  int    `mapstructure:"weeks"`
}

// StartHash parses Start. An empty Start yields the zero hash.
func (w WalkConfig) StartHash() (vcs.Hash, error) {
	if w.Start == "" {
		return vcs.Hash{}, nil
	}

	return vcs.ParseHash(w.Start)
}

// ChurnConfig configures the incremental engine.
type ChurnConfig struct {
	TrackNew bool `mapstructure:"track_new"`
}

// ReducerConfig sizes the full-diff worker pool.
type ReducerConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// RepositoryConfig selects the repository backend.
type RepositoryConfig struct {
	Backend string `mapstructure:"backend"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export and diagnostics settings.
type TelemetryConfig struct {
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	DiagnosticsAddr string `mapstructure:"diagnostics_addr"`
	OTLPInsecure    bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig reads configPath, or .treechurn.yaml in the working directory
// when configPath is empty, layered over environment variables and defaults.
// A missing default file is not an error; a missing explicit file is.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(defaultConfigName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("walk.start", DefaultWalkStart)
	viperCfg.SetDefault("walk.weeks", DefaultWalkWeeks)
	viperCfg.SetDefault("walk.subdir", DefaultWalkSubdir)

	viperCfg.SetDefault("churn.track_new", DefaultChurnTrackNew)

	viperCfg.SetDefault("reducer.workers", DefaultReducerWorkers)
	viperCfg.SetDefault("reducer.queue_size", DefaultReducerQueueSize)

	viperCfg.SetDefault("repository.backend", DefaultRepositoryBackend)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultTelemetryOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultTelemetryOTLPInsecure)
	viperCfg.SetDefault("telemetry.diagnostics_addr", DefaultTelemetryDiagnosticsAddr)
}

// Validate checks value ranges and enumerations. It is also used after
// command-line flags have been layered on top.
func (c *Config) Validate() error {
	if c.Walk.Weeks < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWeeks, c.Walk.Weeks)
	}

	_, err := c.Walk.StartHash()
	if err != nil {
		return err
	}

	if c.Reducer.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Reducer.Workers)
	}

	if c.Reducer.QueueSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueSize, c.Reducer.QueueSize)
	}

	switch c.Repository.Backend {
	case BackendLibgit2, BackendGoGit:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Repository.Backend)
	}

	_, err = c.Logging.SlogLevel()
	if err != nil {
		return err
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(l.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}
