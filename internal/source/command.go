package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/supervisor"
	"github.com/sweeney/dreadpi/internal/validate"
)

// DefaultCommandTimeout bounds a collection script run.
const DefaultCommandTimeout = 30 * time.Second

// commandWaitDelay is how long output is still collected after the script is
// killed. Descendants holding stdout open do not extend a run past it.
const commandWaitDelay = 2 * time.Second

// CommandConfig names a local command whose stdout is the watt reading.
type CommandConfig struct {
	CollectionScript string `toml:"collection_script"`
	TimeoutSeconds   int    `toml:"timeout" default:"30"`
}

// runner executes name with args and reports what it printed.
// err is only set when the process could not be run to completion.
type runner func(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)

// CommandSource runs a collection script directly, without a shell.
type CommandSource struct {
	script  string
	argv    []string
	timeout time.Duration
	run     runner
	log     logrus.FieldLogger
}

// NewCommand rejects an empty collection_script or one containing anything
// but letters, digits, space, underscore, dot, slash and hyphen.
// No shell is involved, but the target itself could still interpret its
// arguments, so shell metacharacters are refused outright.
func NewCommand(cfg CommandConfig, log logrus.FieldLogger) (*CommandSource, error) {
	return newCommand(cfg, execRunner, log)
}

func newCommand(cfg CommandConfig, run runner, log logrus.FieldLogger) (*CommandSource, error) {
	if cfg.CollectionScript == "" {
		return nil, fmt.Errorf("%w: collection_script is an empty value", fault.ErrConfiguration)
	}
	if !validate.IsSafeCommand(cfg.CollectionScript) {
		return nil, fmt.Errorf("%w: collection_script may only contain A-z 0-9 _ - / . and space", fault.ErrConfiguration)
	}
	argv := strings.Fields(cfg.CollectionScript)
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: collection_script is blank", fault.ErrConfiguration)
	}
	timeout := DefaultCommandTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &CommandSource{
		script:  cfg.CollectionScript,
		argv:    argv,
		timeout: timeout,
		run:     run,
		log:     log.WithField("source", ExternalScript.String()),
	}, nil
}

func (s *CommandSource) Kind() Kind { return ExternalScript }

// Fetch runs the script and returns its trimmed stdout. A non-zero exit code
// or output on stderr is logged as a warning; whether the output is usable is
// left to validation.
func (s *CommandSource) Fetch(ctx context.Context, u *supervisor.Unprivileged) (Reading, error) {
	if err := checkToken(u); err != nil {
		return Reading{}, err
	}
	s.log.Debug("capacitors charging...")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stdout, stderr, code, err := s.run(ctx, s.argv[0], s.argv[1:]...)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: run %s: %v", fault.ErrSourceUnavailable, s.script, err)
	}

	if code != 0 {
		s.log.Warnf("%s return code: %d", s.script, code)
	}
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		s.log.Warnf("%s returned: %s", s.script, stderr)
	}

	return Reading{Watts: strings.TrimSpace(stdout)}, nil
}

func execRunner(ctx context.Context, name string, args ...string) (string, string, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = commandWaitDelay
	killProcessGroup(cmd)

	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.String(), stderr.String(), -1, fmt.Errorf("timed out: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	// The script exited but something it started still holds its output.
	if errors.Is(err, exec.ErrWaitDelay) {
		return stdout.String(), stderr.String(), cmd.ProcessState.ExitCode(), nil
	}
	if err != nil {
		return stdout.String(), stderr.String(), -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}
