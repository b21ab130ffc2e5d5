package driver

import (
	"context"
	"strings"

	"github.com/driverdeck/driverdeck/internal/executor"
)

// fakeRunner serves canned command output keyed by the full command
// line, and records every invocation.
type fakeRunner struct {
	available map[string]bool
	results   map[string]executor.Result
	errs      map[string]error
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		available: map[string]bool{},
		results:   map[string]executor.Result{},
		errs:      map[string]error{},
	}
}

func (f *fakeRunner) Available(name string) bool {
	return f.available[name]
}

func (f *fakeRunner) Run(_ context.Context, cmd executor.Command) (executor.Result, error) {
	key := strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return executor.Result{ExitCode: -1}, err
	}
	return f.results[key], nil
}

func (f *fakeRunner) callCount(prefix string) int {
	n := 0
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}
