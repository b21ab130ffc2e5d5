package driver

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/driverdeck/driverdeck/internal/executor"
	"github.com/driverdeck/driverdeck/internal/logging"
)

// upgradableRe matches the canonical apt output line
// "package/suite version arch [upgradable from: old_version]".
var upgradableRe = regexp.MustCompile(`^(\S+)/\S+\s+(\S+)\s+\S+\s+\[upgradable from:\s+([^\]]+)\]`)

// AptStrategyOptions configures the fallback strategy.
type AptStrategyOptions struct {
	// Refresh runs "pkexec apt update" before listing upgradables.
	Refresh bool
	// Patterns filter the upgradable list down to driver-related
	// packages, matched case-insensitively as substrings.
	Patterns []string
	Timeout  time.Duration
}

// AptStrategy is the fallback when ubuntu-drivers is absent: list every
// upgradable package and keep the ones whose names look driver-related.
type AptStrategy struct {
	runner executor.Runner
	opts   AptStrategyOptions
}

func NewAptStrategy(runner executor.Runner, opts AptStrategyOptions) *AptStrategy {
	return &AptStrategy{runner: runner, opts: opts}
}

func (s *AptStrategy) Name() string {
	return "apt"
}

func (s *AptStrategy) Available() bool {
	return s.runner.Available("apt")
}

func (s *AptStrategy) Scan(ctx context.Context, progress ProgressFunc) ([]Entry, error) {
	if s.opts.Refresh {
		progress.emit(Progress{Percent: 10, Message: "Refreshing package lists"})
		result, err := s.runner.Run(ctx, executor.Command{
			Name:    "pkexec",
			Args:    []string{"apt", "update"},
			Timeout: s.opts.Timeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("package list refresh failed, scanning stale lists", logging.KeyError, err)
		} else if result.ExitCode != 0 {
			log.Warn("package list refresh failed, scanning stale lists",
				"exitCode", result.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
		}
	}

	progress.emit(Progress{Percent: 40, Message: "Checking upgradable packages"})

	result, err := s.runner.Run(ctx, executor.Command{
		Name:    "apt",
		Args:    []string{"list", "--upgradable"},
		Timeout: s.opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("apt list --upgradable: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("apt list --upgradable exited %d: %s", result.ExitCode, result.Combined())
	}

	entries := s.parseUpgradable(result.Stdout)
	progress.emit(Progress{Percent: 90, Message: fmt.Sprintf("Found %d driver-related updates", len(entries))})
	return entries, nil
}

// parseUpgradable extracts driver-related entries from apt's upgradable
// listing. Lines that do not carry the "[upgradable from: …]" suffix
// still produce an entry with an empty current version; lines that are
// not package lines at all are skipped.
func (s *AptStrategy) parseUpgradable(output string) []Entry {
	entries := []Entry{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "Listing") || strings.HasPrefix(line, "WARNING") {
			continue
		}
		if !s.matchesDriverPattern(line) {
			continue
		}

		var name, version, current string
		if m := upgradableRe.FindStringSubmatch(line); m != nil {
			name, version, current = m[1], m[2], m[3]
		} else {
			// Tolerate missing fields: take what is there and
			// substitute empty strings for the rest.
			fields := strings.Fields(line)
			if len(fields) == 0 || !strings.Contains(fields[0], "/") {
				continue
			}
			name = fields[0]
			if len(fields) > 1 {
				version = fields[1]
			}
		}
		name, _, _ = strings.Cut(name, "/")
		if name == "" {
			continue
		}

		entries = append(entries, Entry{
			Package:          name,
			CurrentVersion:   current,
			AvailableVersion: version,
			Source:           s.Name(),
		})
		log.Info("potential driver update", logging.KeyPackage, name, "candidate", version)
	}

	return entries
}

func (s *AptStrategy) matchesDriverPattern(line string) bool {
	lower := strings.ToLower(line)
	for _, pattern := range s.opts.Patterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
