// Package commands implements the treechurn subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treechurn/internal/observability"
	"github.com/Sumatoshi-tech/treechurn/pkg/config"
	"github.com/Sumatoshi-tech/treechurn/pkg/gitlib"
	"github.com/Sumatoshi-tech/treechurn/pkg/gogit"
	"github.com/Sumatoshi-tech/treechurn/pkg/reducer"
	"github.com/Sumatoshi-tech/treechurn/pkg/vcs"
	"github.com/Sumatoshi-tech/treechurn/pkg/version"
	"github.com/Sumatoshi-tech/treechurn/pkg/walker"
)

// ErrRepositoryLoad wraps failures to open the analyzed repository.
var ErrRepositoryLoad = errors.New("failed to load repository")

const (
	defaultRepository = "."

	// queuePerWorker sizes the reducer queue when only the worker count is set.
	queuePerWorker = 2
)

// GlobalOptions carries the root command's persistent flags.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// walkFlags are shared by every analysis command.
type walkFlags struct {
	start           string
	weeks           int
	subdir          string
	backend         string
	diagnosticsAddr string
}

func (wf *walkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&wf.start, "start", config.DefaultWalkStart, "Full commit id to start the walk at instead of HEAD")
	cmd.Flags().IntVar(&wf.weeks, "weeks", config.DefaultWalkWeeks, "Only walk commits from the last N weeks (0 = full history)")
	cmd.Flags().StringVar(&wf.subdir, "subdir", config.DefaultWalkSubdir, "Restrict the analysis to this subdirectory")
	cmd.Flags().StringVar(&wf.backend, "backend", config.DefaultRepositoryBackend, "Repository backend (libgit2, gogit)")
	cmd.Flags().StringVar(&wf.diagnosticsAddr, "diagnostics-addr", "", "Serve /healthz and /metrics on this address during the run")
}

// apply layers explicitly set flags over cfg.
func (wf *walkFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("start") {
		cfg.Walk.Start = wf.start
	}

	if flags.Changed("weeks") {
		cfg.Walk.Weeks = wf.weeks
	}

	if flags.Changed("subdir") {
		cfg.Walk.Subdir = wf.subdir
	}

	if flags.Changed("backend") {
		cfg.Repository.Backend = wf.backend
	}

	if flags.Changed("diagnostics-addr") {
		cfg.Telemetry.DiagnosticsAddr = wf.diagnosticsAddr
	}
}

// session holds everything one command run needs.
type session struct {
	cfg         *config.Config
	providers   observability.Providers
	logger      *slog.Logger
	metrics     *observability.ChurnMetrics
	diagnostics *observability.DiagnosticsServer
	repo        vcs.Repository
	open        vcs.Opener
	revisions   []walker.Revision
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(globals *GlobalOptions, overrides func(*config.Config)) (*config.Config, error) {
	cfg, err := config.LoadConfig(globals.ConfigPath)
	if err != nil {
		return nil, err
	}

	overrides(cfg)

	switch {
	case globals.Verbose:
		cfg.Logging.Level = "debug"
	case globals.Quiet:
		cfg.Logging.Level = "error"
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// openSession sets up telemetry, opens the repository and walks its history.
func openSession(ctx context.Context, cfg *config.Config, args []string, logOut io.Writer) (*session, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.Prometheus = cfg.Telemetry.DiagnosticsAddr != ""
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON

	providers, err := observability.InitWithWriter(obsCfg, logOut)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	sess := &session{cfg: cfg, providers: providers, logger: providers.Logger}

	sess.metrics, err = observability.NewChurnMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, sess.Close(ctx))
	}

	if cfg.Telemetry.DiagnosticsAddr != "" {
		sess.diagnostics, err = observability.NewDiagnosticsServer(
			cfg.Telemetry.DiagnosticsAddr, providers.MetricsHandler, providers.Tracer, sess.logger)
		if err != nil {
			return nil, errors.Join(err, sess.Close(ctx))
		}

		sess.logger.InfoContext(ctx, "diagnostics listening", "addr", sess.diagnostics.Addr())
	}

	path := defaultRepository
	if len(args) > 0 {
		path = args[0]
	}

	sess.repo, sess.open, err = openRepository(cfg.Repository.Backend, path)
	if err != nil {
		return nil, errors.Join(err, sess.Close(ctx))
	}

	err = sess.walk(ctx)
	if err != nil {
		return nil, errors.Join(err, sess.Close(ctx))
	}

	return sess, nil
}

func openRepository(backend, path string) (vcs.Repository, vcs.Opener, error) {
	localPath, err := gitlib.CheckLocalURI(path)
	if err != nil {
		return nil, nil, err
	}

	var open vcs.Opener

	switch backend {
	case config.BackendGoGit:
		open = gogit.Opener(localPath)
	default:
		open = gitlib.Opener(localPath)
	}

	repo, err := open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRepositoryLoad, err)
	}

	return repo, open, nil
}

func (s *session) walk(ctx context.Context) error {
	ctx, span := s.providers.Tracer.Start(ctx, "treechurn.walk")
	defer span.End()

	start, err := s.cfg.Walk.StartHash()
	if err != nil {
		return err
	}

	w, err := walker.New(ctx, s.repo, walker.Options{
		Start:  start,
		Since:  walker.SinceWeeks(time.Now(), s.cfg.Walk.Weeks),
		Subdir: walker.SplitPath(s.cfg.Walk.Subdir),
		Logger: s.logger,
	})
	if err != nil {
		return err
	}

	s.revisions, err = walker.Collect(w)
	if err != nil {
		return fmt.Errorf("walk history: %w", err)
	}

	span.SetAttributes(attribute.Int("treechurn.revisions", len(s.revisions)))
	s.metrics.RecordRevisions(ctx, len(s.revisions))
	s.logger.DebugContext(ctx, "history walked", "revisions", len(s.revisions))

	return nil
}

// startSpan opens the command's root span.
func (s *session) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.providers.Tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("treechurn.backend", s.cfg.Repository.Backend),
		attribute.String("treechurn.subdir", s.cfg.Walk.Subdir),
		attribute.Int("treechurn.weeks", s.cfg.Walk.Weeks),
	))
}

func (s *session) reducerConfig() reducer.Config {
	rc := reducer.DefaultConfig()

	if s.cfg.Reducer.Workers > 0 {
		rc.Workers = s.cfg.Reducer.Workers
		rc.QueueSize = rc.Workers * queuePerWorker
	}

	if s.cfg.Reducer.QueueSize > 0 {
		rc.QueueSize = s.cfg.Reducer.QueueSize
	}

	return rc
}

// jobObserver feeds reducer job outputs into the job metrics.
func (s *session) jobObserver() reducer.Option {
	return reducer.WithJobObserver(func(ctx context.Context, out reducer.DeltaJobOutput) {
		status := observability.StatusOK
		if out.Err != nil {
			status = observability.StatusError
		}

		s.metrics.RecordJob(ctx, status, out.Duration)
	})
}

// Close releases the repository handle, the diagnostics server and telemetry.
func (s *session) Close(ctx context.Context) error {
	var errs []error

	if s.repo != nil {
		s.repo.Close()
	}

	if s.diagnostics != nil {
		errs = append(errs, s.diagnostics.Close())
	}

	if s.providers.Shutdown != nil {
		errs = append(errs, s.providers.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
