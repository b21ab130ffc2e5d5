package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/driverdeck/driverdeck/internal/executor"
	"github.com/driverdeck/driverdeck/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Discard()
	m.Run()
}

type fakeRunner struct {
	available bool
	commands  []executor.Command
}

func (f *fakeRunner) Run(_ context.Context, cmd executor.Command) (executor.Result, error) {
	f.commands = append(f.commands, cmd)
	return executor.Result{Duration: time.Millisecond}, nil
}

func (f *fakeRunner) Available(string) bool { return f.available }

func TestSendPassesUrgencyAndText(t *testing.T) {
	runner := &fakeRunner{available: true}
	n := New(runner, true)

	n.Send(context.Background(), "Updates available", "3 driver updates found", UrgencyNormal)

	if len(runner.commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(runner.commands))
	}
	got := strings.Join(runner.commands[0].Args, " ")
	want := "-u normal Updates available 3 driver updates found"
	if got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestSendDisabledRunsNothing(t *testing.T) {
	runner := &fakeRunner{available: true}
	n := New(runner, false)

	n.Send(context.Background(), "title", "body", UrgencyLow)

	if len(runner.commands) != 0 {
		t.Fatalf("expected no commands, got %d", len(runner.commands))
	}
}

func TestSendSkipsWhenBinaryMissing(t *testing.T) {
	runner := &fakeRunner{available: false}
	n := New(runner, true)

	n.Send(context.Background(), "title", "body", "")

	if len(runner.commands) != 0 {
		t.Fatalf("expected no commands, got %d", len(runner.commands))
	}
}
