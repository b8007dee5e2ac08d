package classifier

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sdejongh/fylr/pkg/logging"
)

var commandContext = exec.CommandContext

const (
	maxLineSize   = 4 * 1024 * 1024
	maxStderrSize = 64 * 1024
)

// Service runs one classifier request and returns its stdout lines
type Service interface {
	Invoke(ctx context.Context, req Request) ([]string, error)
}

// ProcessError describes a classifier process that ran but failed
type ProcessError struct {
	Script   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("classifier %s exited with code %d", e.Script, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Option configures the process service
type Option func(*ProcessService)

// WithInterpreter overrides interpreter discovery
func WithInterpreter(path string) Option {
	return func(s *ProcessService) {
		if path != "" {
			s.interpreter = path
		}
	}
}

// WithVenv sets the virtual environment searched for an interpreter
func WithVenv(dir string) Option {
	return func(s *ProcessService) {
		s.venv = dir
	}
}

// WithScript sets the script run for action
func WithScript(action Action, script string) Option {
	return func(s *ProcessService) {
		if script != "" {
			s.scripts[action] = script
		}
	}
}

// WithTimeout bounds each invocation; zero means no limit beyond ctx
func WithTimeout(d time.Duration) Option {
	return func(s *ProcessService) {
		s.timeout = d
	}
}

// WithEnv adds an environment variable to the child process
func WithEnv(key, value string) Option {
	return func(s *ProcessService) {
		if key != "" && value != "" {
			s.env = append(s.env, key+"="+value)
		}
	}
}

// WithWorkDir sets the child's working directory
func WithWorkDir(dir string) Option {
	return func(s *ProcessService) {
		s.workDir = dir
	}
}

// WithLineHandler receives every stdout line as it is read
func WithLineHandler(fn func(string)) Option {
	return func(s *ProcessService) {
		s.onLine = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *ProcessService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ProcessService runs classifier scripts as child processes:
// <interpreter> -u <script> <request.json>
type ProcessService struct {
	interpreter string
	venv        string
	scripts     map[Action]string
	timeout     time.Duration
	env         []string
	workDir     string
	onLine      func(string)
	logger      logging.Logger
}

// NewProcessService constructs a service using opts
func NewProcessService(opts ...Option) *ProcessService {
	s := &ProcessService{
		scripts: make(map[Action]string),
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invoke validates req, runs the matching script and returns its stdout lines
func (s *ProcessService) Invoke(ctx context.Context, req Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	script := s.scripts[req.Action]
	if script == "" && req.Action == ActionGenerate {
		script = s.scripts[ActionRename]
	}
	if script == "" {
		return nil, fmt.Errorf("no classifier script configured for action %q", req.Action)
	}

	interpreter := s.interpreter
	if interpreter == "" {
		found, err := FindInterpreter(s.venv)
		if err != nil {
			return nil, err
		}
		interpreter = found
	}

	configPath, err := writeRequest(req)
	if err != nil {
		return nil, err
	}
	defer os.Remove(configPath)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := commandContext(ctx, interpreter, "-u", script, configPath) //nolint:gosec
	cmd.Dir = s.workDir
	cmd.Env = append(cmd.Environ(), s.env...)
	stderr := newTailBuffer(maxStderrSize)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start classifier: %w", err)
	}
	s.logger.Debug(ctx, "classifier started", logging.Fields{
		"action": string(req.Action),
		"script": script,
		"pid":    cmd.Process.Pid,
	})

	var lines []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if s.onLine != nil {
			s.onLine(line)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// The child may still be writing; stop it and empty the pipe so Wait returns.
		_ = cmd.Process.Kill()
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	s.logger.Debug(ctx, "classifier finished", logging.Fields{
		"action":   string(req.Action),
		"lines":    len(lines),
		"duration": time.Since(start).String(),
	})

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("classifier interrupted: %w", ctxErr)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("read classifier output: %w", scanErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &ProcessError{
				Script:   script,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
				Err:      waitErr,
			}
		}
		return nil, fmt.Errorf("classifier failed: %w", waitErr)
	}

	return lines, nil
}

func writeRequest(req Request) (string, error) {
	f, err := os.CreateTemp("", "fylr-request-*.json")
	if err != nil {
		return "", fmt.Errorf("create request file: %w", err)
	}

	if err := json.NewEncoder(f).Encode(req); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write request file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write request file: %w", err)
	}
	return f.Name(), nil
}

var _ Service = (*ProcessService)(nil)
