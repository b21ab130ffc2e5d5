package taskrunner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartDeliversExactlyOneResult(t *testing.T) {
	r := New[int]()

	results, err := r.Start(context.Background(), "scan", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	select {
	case outcome := <-results:
		if outcome.Err != nil || outcome.Value != 42 {
			t.Fatalf("unexpected outcome: %+v", outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}

	select {
	case outcome, ok := <-results:
		if ok {
			t.Fatalf("second delivery on result channel: %+v", outcome)
		}
	case <-time.After(50 * time.Millisecond):
		// Nothing further delivered.
	}
}

func TestStartWhileRunningFailsAndLeavesTaskUnaffected(t *testing.T) {
	r := New[string]()
	release := make(chan struct{})

	results, err := r.Start(context.Background(), "scan", func(context.Context) (string, error) {
		<-release
		return "done", nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := r.Start(context.Background(), "scan", func(context.Context) (string, error) {
		return "intruder", nil
	}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	close(release)
	outcome := <-results
	if outcome.Value != "done" {
		t.Fatalf("original task was affected: %+v", outcome)
	}
}

func TestCancelSuppressesDelivery(t *testing.T) {
	r := New[int]()
	started := make(chan struct{})

	results, err := r.Start(context.Background(), "scan", func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	<-started
	if err := r.Cancel(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	select {
	case outcome := <-results:
		t.Fatalf("result delivered after cancellation: %+v", outcome)
	case <-time.After(200 * time.Millisecond):
	}

	waitIdle(t, r)
}

func TestCancelRacingCompletionWins(t *testing.T) {
	r := New[int]()
	started := make(chan struct{})
	finish := make(chan struct{})

	results, err := r.Start(context.Background(), "scan", func(context.Context) (int, error) {
		close(started)
		// Ignore the context entirely: the task completes normally
		// right after cancellation, exercising the race.
		<-finish
		return 7, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	<-started
	if err := r.Cancel(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	close(finish)

	select {
	case outcome := <-results:
		t.Fatalf("cancellation flag must win over completion: %+v", outcome)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCancelWhenIdleFails(t *testing.T) {
	r := New[int]()
	if err := r.Cancel(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestRunnerReturnsToIdleAfterFailure(t *testing.T) {
	r := New[int]()

	results, err := r.Start(context.Background(), "scan", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	outcome := <-results
	if outcome.Err == nil {
		t.Fatal("expected task error")
	}

	waitIdle(t, r)

	// A fresh task can start after the failure.
	if _, err := r.Start(context.Background(), "scan", func(context.Context) (int, error) {
		return 1, nil
	}); err != nil {
		t.Fatalf("runner did not return to idle: %v", err)
	}
}

func TestTaskSeesCancellationViaContext(t *testing.T) {
	r := New[int]()
	started := make(chan struct{})
	observed := make(chan error, 1)

	_, err := r.Start(context.Background(), "install", func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()
		return 0, ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	<-started
	if err := r.Cancel(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	select {
	case err := <-observed:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled inside task, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("task never observed cancellation")
	}
}

func waitIdle(t *testing.T, r interface{ Running() bool }) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !r.Running() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("runner never returned to idle")
}
