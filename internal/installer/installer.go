// Package installer applies driver package updates through privileged
// apt-get invocations. Packages are installed one at a time so a
// failure in one package leaves the outcomes of the others independent.
package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/driverdeck/driverdeck/internal/executor"
	"github.com/driverdeck/driverdeck/internal/logging"
)

var log = logging.L("installer")

var installedRe = regexp.MustCompile(`Installed:\s*([^\n]+)`)

// ErrAuthDenied means the privilege-elevation prompt was dismissed or
// rejected. The batch is aborted: the failing package and every pending
// package are reported as failed, and nothing is retried.
var ErrAuthDenied = errors.New("authentication dismissed or denied")

// pkexec reserves these exit codes for authorization failures: 127 when
// the user could not be authorized, 126 when the dialog was dismissed.
const (
	pkexecExitDenied    = 127
	pkexecExitDismissed = 126
)

// Outcome reports the result of installing one package.
type Outcome struct {
	Package        string
	Succeeded      bool
	RebootRequired bool
	Message        string
}

// Progress describes an in-flight batch install.
type Progress struct {
	Package string
	Index   int // 1-based position in the batch
	Total   int
	Message string
}

// ProgressFunc receives progress updates during a batch. May be nil.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(p Progress) {
	if f != nil {
		f(p)
	}
}

// Options configures an Installer.
type Options struct {
	// RebootPatterns are glob patterns matched against package names;
	// a successful install of a matching package is flagged as
	// requiring a reboot.
	RebootPatterns []string
	Timeout        time.Duration
}

type Installer struct {
	runner executor.Runner
	opts   Options
}

func New(runner executor.Runner, opts Options) *Installer {
	return &Installer{runner: runner, opts: opts}
}

// Available reports whether the privileged install path exists.
func (i *Installer) Available() bool {
	return i.runner.Available("pkexec") && i.runner.Available("apt-get")
}

// Install upgrades (or installs) the given packages one at a time.
// There is a cancellation checkpoint before each package; an apt-get
// invocation already in flight is never preempted. On cancellation the
// outcomes collected so far are returned along with the context error.
// On authorization refusal all remaining packages are marked failed and
// the returned error wraps ErrAuthDenied.
func (i *Installer) Install(ctx context.Context, packages []string, progress ProgressFunc) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(packages))

	for idx, pkg := range packages {
		if err := ctx.Err(); err != nil {
			log.Info("install batch cancelled", "completed", len(outcomes), "pending", len(packages)-len(outcomes))
			return outcomes, err
		}

		progress.emit(Progress{
			Package: pkg,
			Index:   idx + 1,
			Total:   len(packages),
			Message: fmt.Sprintf("Installing %s (%d/%d)", pkg, idx+1, len(packages)),
		})

		outcome, err := i.installOne(ctx, pkg)
		outcomes = append(outcomes, outcome)

		if errors.Is(err, ErrAuthDenied) {
			for _, pending := range packages[idx+1:] {
				outcomes = append(outcomes, Outcome{
					Package: pending,
					Message: "not attempted: " + err.Error(),
				})
			}
			return outcomes, err
		}
	}

	return outcomes, nil
}

func (i *Installer) installOne(ctx context.Context, pkg string) (Outcome, error) {
	args := []string{"apt-get", "-y", "install"}
	if i.isInstalled(ctx, pkg) {
		args = append(args, "--only-upgrade")
	}
	args = append(args, pkg)

	result, err := i.runner.Run(ctx, executor.Command{
		Name:    "pkexec",
		Args:    args,
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
		Timeout: i.opts.Timeout,
	})
	if err != nil {
		log.Error("install failed to run", logging.KeyPackage, pkg, logging.KeyError, err)
		return Outcome{Package: pkg, Message: err.Error()}, nil
	}

	switch result.ExitCode {
	case 0:
		reboot := i.rebootRequired(pkg, result)
		log.Info("package installed", logging.KeyPackage, pkg, "rebootRequired", reboot,
			logging.KeyDurationMs, result.Duration.Milliseconds())
		return Outcome{
			Package:        pkg,
			Succeeded:      true,
			RebootRequired: reboot,
			Message:        "installed successfully",
		}, nil
	case pkexecExitDenied, pkexecExitDismissed:
		log.Warn("authorization refused", logging.KeyPackage, pkg, "exitCode", result.ExitCode)
		return Outcome{Package: pkg, Message: ErrAuthDenied.Error()}, ErrAuthDenied
	default:
		msg := fmt.Sprintf("apt-get exited %d: %s", result.ExitCode, tailOf(result.Combined()))
		log.Error("install failed", logging.KeyPackage, pkg, "exitCode", result.ExitCode)
		return Outcome{Package: pkg, Message: msg}, nil
	}
}

// isInstalled checks apt-cache policy; unknown or uninstalled packages
// are installed without --only-upgrade so apt can pull them in fresh.
func (i *Installer) isInstalled(ctx context.Context, pkg string) bool {
	result, err := i.runner.Run(ctx, executor.Command{
		Name:    "apt-cache",
		Args:    []string{"policy", pkg},
		Timeout: i.opts.Timeout,
	})
	if err != nil || result.ExitCode != 0 {
		// Conservative: assume installed so we never install a package
		// the user only asked to upgrade.
		return true
	}

	m := installedRe.FindStringSubmatch(result.Stdout)
	if m == nil {
		return true
	}
	installed := strings.TrimSpace(m[1])
	return installed != "" && installed != "(none)"
}

func (i *Installer) rebootRequired(pkg string, result executor.Result) bool {
	for _, pattern := range i.opts.RebootPatterns {
		if ok, err := filepath.Match(pattern, pkg); err == nil && ok {
			return true
		}
	}
	// apt occasionally says so outright.
	return strings.Contains(strings.ToLower(result.Combined()), "reboot required")
}

// tailOf keeps failure messages displayable: apt output can be large,
// and the interesting part is at the end.
func tailOf(s string) string {
	const max = 400
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}
