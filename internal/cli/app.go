package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdejongh/fylr/pkg/classifier"
	"github.com/sdejongh/fylr/pkg/config"
	"github.com/sdejongh/fylr/pkg/extract"
	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/orchestrator"
	"github.com/sdejongh/fylr/pkg/output"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/state"
	"github.com/sdejongh/fylr/pkg/storage"
	"github.com/sdejongh/fylr/pkg/usage"
)

// ExitError carries the process exit code for a failed command.
// Err is nil when the failure was already reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// reportExit converts a batch status into an exit error, nil on success
func reportExit(report *models.RenameReport) error {
	if code := report.Status.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// newService builds the classifier service; tests replace it
var newService = func(cfg *config.Config, logger logging.Logger) (classifier.Service, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return classifier.NewProcessService(
		classifier.WithInterpreter(cfg.Classifier.Interpreter),
		classifier.WithVenv(cfg.Classifier.Venv),
		classifier.WithScript(classifier.ActionOrganize, cfg.Classifier.OrganizeScript),
		classifier.WithScript(classifier.ActionRename, cfg.Classifier.RenameScript),
		classifier.WithTimeout(timeout),
		classifier.WithLogger(logger),
	), nil
}

// app holds everything a command needs for one run
type app struct {
	cfg    *config.Config
	logger logging.Logger
	out    output.Formatter
	// notices go to stderr so that JSON on stdout stays parseable
	notices output.Formatter
	stdout  io.Writer
	stderr  io.Writer

	stateDir string
	lock     *state.Lock
	usage    *usage.Store
	sessions *plan.Store
	governor *usage.Governor
}

// newApp loads configuration and state. Commands that change files or state
// pass exclusive to take the operation lock.
func newApp(cmd *cobra.Command, exclusive bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlagsToConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if cfg.Output.Quiet {
		stdout = io.Discard
	}

	out, err := output.New(cfg.Output.Format, stdout)
	if err != nil {
		return nil, err
	}
	notices, err := output.New(cfg.Output.Format, stderr)
	if err != nil {
		return nil, err
	}

	logger, err := createLogger(cfg.Logging, stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		out:      out,
		notices:  notices,
		stdout:   stdout,
		stderr:   stderr,
		stateDir: state.Dir(),
	}
	a.usage = usage.NewStore(a.stateDir)
	a.sessions = plan.NewStore(a.stateDir)

	if exclusive {
		lock, err := state.Acquire(a.stateDir)
		if err != nil {
			logger.Close()
			return nil, err
		}
		a.lock = lock
	}

	a.governor = usage.NewGovernor(cfg.Mode(), cfg.Usage.TokenLimit, cfg.Usage.CallLimit)
	if cfg.Usage.Persist {
		if err := a.usage.LoadInto(a.governor); err != nil {
			logger.Warn(cmd.Context(), "could not read saved usage, starting from zero", logging.Fields{
				"path":  a.usage.Path(),
				"error": err.Error(),
			})
		}
	}

	return a, nil
}

// close persists usage and releases the lock
func (a *app) close(ctx context.Context) {
	if a.lock != nil && a.cfg.Usage.Persist {
		if err := a.usage.SaveFrom(a.governor); err != nil {
			a.logger.Error(ctx, "failed to save usage", err, logging.Fields{"path": a.usage.Path()})
		}
	}
	if err := a.lock.Release(); err != nil {
		a.logger.Error(ctx, "failed to release lock", err, nil)
	}
	a.logger.Close()
}

// orchestrator wires the classifier service and forwards events to stderr
func (a *app) orchestrator() (*orchestrator.Orchestrator, error) {
	if err := orchestrator.LoadEnvFile(a.cfg.Classifier.EnvFile); err != nil {
		return nil, err
	}

	svc, err := newService(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(svc, a.governor,
		orchestrator.WithPolicy(a.cfg.Policy()),
		orchestrator.WithCredentials(orchestrator.NewEnvCredentials(a.cfg.Classifier.CredentialEnv)),
		orchestrator.WithExtractOptions(extract.Options{RequireMarker: a.cfg.Classifier.RequireMarker}),
		orchestrator.WithLogger(a.logger),
	)
	orch.Subscribe(func(ev orchestrator.Event) {
		if ev.Type == orchestrator.EventWarning && !globalFlags.Verbose {
			return
		}
		a.notices.Event(ev)
	})
	return orch, nil
}

// listFiles returns the regular files of dir as classifier entries
func (a *app) listFiles(ctx context.Context, backend storage.Backend, recursive bool) ([]models.FileEntry, error) {
	infos, err := backend.List(ctx, "", storage.ListOptions{
		Recursive: recursive,
		Exclude:   a.cfg.Scan.Exclude,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]models.FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, models.NewFileEntry(info.Path, info.Size, info.ModTime))
	}
	return entries, nil
}

// loadSession returns the saved session or plan.ErrNoSession
func (a *app) loadSession() (*plan.Session, error) {
	return a.sessions.Load()
}

// createLogger creates a logger based on configuration
func createLogger(cfg config.LoggingConfig, stderr io.Writer) (logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NewNopLogger(), nil
	}

	format := logging.FormatJSON
	if cfg.Format == "text" {
		format = logging.FormatText
	}

	logger, err := logging.New(logging.Config{
		Format:     format,
		Level:      logging.ParseLevel(cfg.Level),
		Path:       cfg.File,
		MaxSize:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		MaxBackups: cfg.MaxBackups,
		Output:     stderr,
	})
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// progress starts a bar on stderr for human output at a terminal
func (a *app) progress(total int) *output.Progress {
	enabled := a.cfg.Output.Progress && !a.cfg.Output.Quiet && a.out.Name() == output.FormatHuman
	return output.NewProgress(os.Stderr, total, enabled)
}
