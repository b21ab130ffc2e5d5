// Package taskrunner executes one task at a time off the UI goroutine
// and hands the result back over a channel. The runner enforces the
// single-flight invariant (a second Start while a task is running is an
// error) and supports cooperative cancellation: cancelling marks the
// in-flight task so that its result, if it still arrives, is dropped
// instead of delivered.
package taskrunner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/driverdeck/driverdeck/internal/logging"
)

var log = logging.L("taskrunner")

// ErrAlreadyRunning is returned by Start while a task is in flight.
var ErrAlreadyRunning = errors.New("a task is already running")

// ErrNotRunning is returned by Cancel when no task is in flight.
var ErrNotRunning = errors.New("no task is running")

// Outcome is the single result of a finished task, delivered by value.
// A task cancelled through Runner.Cancel never delivers an Outcome; Err
// is only ever a task failure or an external context cancellation.
type Outcome[T any] struct {
	Value    T
	Err      error
	Duration time.Duration
}

// Runner is a single-flight task executor. The zero value is ready to
// use. One UI goroutine owns the result channel; at most one worker
// goroutine exists at a time.
type Runner[T any] struct {
	mu        sync.Mutex
	running   bool
	cancelled bool
	cancel    context.CancelFunc
}

// New returns an idle runner.
func New[T any]() *Runner[T] {
	return &Runner[T]{}
}

// Running reports whether a task is in flight.
func (r *Runner[T]) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches fn on a worker goroutine and returns a buffered
// channel that receives exactly one Outcome. A cancelled task never
// delivers anything. Returns ErrAlreadyRunning while a previous task
// is still in flight.
func (r *Runner[T]) Start(ctx context.Context, name string, fn func(context.Context) (T, error)) (<-chan Outcome[T], error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	taskCtx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancelled = false
	r.cancel = cancel
	r.mu.Unlock()

	logger := logging.WithTask(log, name)
	logger.Info("task started")
	results := make(chan Outcome[T], 1)
	start := time.Now()

	go func() {
		value, err := fn(taskCtx)

		// The cancellation flag decides delivery: a cancel that raced
		// the task's completion wins, and the result is dropped.
		r.mu.Lock()
		suppressed := r.cancelled
		r.running = false
		r.cancel = nil
		r.mu.Unlock()
		cancel()

		duration := time.Since(start)
		if suppressed {
			logger.Info("task cancelled, result dropped", logging.KeyDurationMs, duration.Milliseconds())
			return
		}

		if err != nil {
			logger.Warn("task failed", logging.KeyError, err, logging.KeyDurationMs, duration.Milliseconds())
		} else {
			logger.Info("task completed", logging.KeyDurationMs, duration.Milliseconds())
		}
		results <- Outcome[T]{Value: value, Err: err, Duration: duration}
	}()

	return results, nil
}

// Cancel requests cooperative cancellation of the in-flight task and
// suppresses delivery of its result. Valid only while a task is
// running. A blocking subprocess already launched by the task is not
// preempted; cancellation takes effect at the task's next checkpoint.
func (r *Runner[T]) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return ErrNotRunning
	}

	r.cancelled = true
	r.cancel()
	return nil
}
