// Package executor runs external commands with timeouts, process-group
// isolation and capped output capture. Every subprocess this program
// launches (detection scans, package installs, notifications) goes
// through a Runner so adapters can be tested against fakes.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/driverdeck/driverdeck/internal/logging"
)

var log = logging.L("executor")

const (
	// DefaultTimeout bounds commands that do not set their own.
	DefaultTimeout = 5 * time.Minute

	// MaxOutputSize is the maximum size of stdout/stderr to capture.
	MaxOutputSize = 1024 * 1024 // 1MB
)

// Command describes a single external command invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string // appended to the inherited environment
	Stdin   string
	Timeout time.Duration // 0 means DefaultTimeout
}

// Result captures the outcome of a completed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Combined returns stdout and stderr joined, trimmed of trailing space.
func (r Result) Combined() string {
	return strings.TrimSpace(r.Stdout + r.Stderr)
}

// ErrTimeout is returned when a command exceeds its timeout. The process
// group is killed before the error is reported.
var ErrTimeout = errors.New("command timed out")

// Runner executes commands. The error is non-nil only when the command
// could not run to completion: not found, failed to start, cancelled, or
// timed out. A command that runs and exits nonzero yields a nil error
// with Result.ExitCode set; interpreting exit codes is the caller's job.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
	// Available reports whether the named binary is on PATH.
	Available(name string) bool
}

type execRunner struct{}

// New returns a Runner backed by os/exec.
func New() Runner {
	return execRunner{}
}

func (execRunner) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (execRunner) Run(ctx context.Context, command Command) (Result, error) {
	timeout := command.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, command.Name, command.Args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: MaxOutputSize}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: MaxOutputSize}

	if command.Stdin != "" {
		cmd.Stdin = strings.NewReader(command.Stdin)
	}
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}

	// Run in its own process group so children are killed on timeout.
	setProcessGroup(cmd)

	err := cmd.Run()

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			if killErr := killProcessGroup(cmd); killErr != nil {
				log.Warn("failed to kill process group", "command", command.Name, logging.KeyError, killErr)
			}
			log.Warn("command timed out", "command", command.Name, "timeout", timeout)
			result.ExitCode = -1
			return result, fmt.Errorf("%s: %w after %s", command.Name, ErrTimeout, timeout)
		}
		if ctx.Err() != nil {
			if killErr := killProcessGroup(cmd); killErr != nil {
				log.Warn("failed to kill process group", "command", command.Name, logging.KeyError, killErr)
			}
			result.ExitCode = -1
			return result, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			log.Debug("command exited nonzero", "command", command.Name, "exitCode", result.ExitCode)
			return result, nil
		}
		result.ExitCode = -1
		log.Error("command failed to run", "command", command.Name, logging.KeyError, err)
		return result, fmt.Errorf("run %s: %w", command.Name, err)
	}

	log.Debug("command completed", "command", command.Name, logging.KeyDurationMs, result.Duration.Milliseconds())
	return result, nil
}

// limitedWriter wraps a buffer with a size limit.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (n int, err error) {
	if w.written >= w.limit {
		// Discard additional data but don't error
		return len(p), nil
	}

	orig := len(p)
	remaining := w.limit - w.written
	if len(p) > remaining {
		p = p[:remaining]
	}

	n, err = w.buf.Write(p)
	w.written += n
	return orig, err // Return original length to avoid short write errors
}
