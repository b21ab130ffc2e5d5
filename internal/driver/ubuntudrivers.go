package driver

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driverdeck/driverdeck/internal/executor"
	"github.com/driverdeck/driverdeck/internal/logging"
)

// UbuntuDriversStrategy uses the ubuntu-drivers detection tool to map
// hardware devices to candidate driver packages, then resolves the
// installed and candidate versions of each package through apt-cache.
type UbuntuDriversStrategy struct {
	runner  executor.Runner
	timeout time.Duration
}

func NewUbuntuDriversStrategy(runner executor.Runner, timeout time.Duration) *UbuntuDriversStrategy {
	return &UbuntuDriversStrategy{runner: runner, timeout: timeout}
}

func (s *UbuntuDriversStrategy) Name() string {
	return "ubuntu-drivers"
}

func (s *UbuntuDriversStrategy) Available() bool {
	return s.runner.Available("ubuntu-drivers") && s.runner.Available("apt-cache")
}

func (s *UbuntuDriversStrategy) Scan(ctx context.Context, progress ProgressFunc) ([]Entry, error) {
	progress.emit(Progress{Percent: 10, Message: "Analyzing devices and driver candidates"})

	result, err := s.runner.Run(ctx, executor.Command{
		Name:    "ubuntu-drivers",
		Args:    []string{"devices"},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ubuntu-drivers devices: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("ubuntu-drivers devices exited %d: %s", result.ExitCode, result.Combined())
	}

	candidates := parseDeviceCandidates(result.Stdout)
	if len(candidates) == 0 {
		return []Entry{}, nil
	}

	progress.emit(Progress{Percent: 40, Message: "Checking installed and candidate versions"})

	entries := []Entry{}
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		progress.emit(Progress{
			Percent: 40 + (50*i)/len(candidates),
			Message: fmt.Sprintf("Checking package %s", candidate.pkg),
			Package: candidate.pkg,
		})

		policy, err := queryPolicy(ctx, s.runner, candidate.pkg, s.timeout)
		if err != nil {
			return nil, fmt.Errorf("apt-cache policy %s: %w", candidate.pkg, err)
		}

		entry, ok := entryFromPolicy(candidate, policy)
		if !ok {
			continue
		}
		entry.Source = s.Name()
		entries = append(entries, entry)
		log.Info("driver candidate", logging.KeyPackage, entry.Package,
			"installed", entry.CurrentVersion, "candidate", entry.AvailableVersion,
			"recommended", entry.Recommended)
	}

	return entries, nil
}

// entryFromPolicy decides whether a driver candidate is worth showing:
// an installed package with a newer candidate version is an update, and
// an uninstalled recommended package is an install suggestion. Anything
// else is dropped.
func entryFromPolicy(c driverCandidate, p packagePolicy) (Entry, bool) {
	installed := p.Installed
	if installed == "" {
		installed = NoneVersion
	}

	switch {
	case installed != NoneVersion && p.Candidate != "" && p.Candidate != installed:
		return Entry{
			Package:          c.pkg,
			CurrentVersion:   installed,
			AvailableVersion: p.Candidate,
			Recommended:      c.recommended,
			Vendor:           c.vendor,
			Model:            c.model,
		}, true
	case installed == NoneVersion && c.recommended:
		available := p.Candidate
		if available == NoneVersion {
			available = ""
		}
		return Entry{
			Package:          c.pkg,
			CurrentVersion:   NoneVersion,
			AvailableVersion: available,
			Recommended:      true,
			Vendor:           c.vendor,
			Model:            c.model,
		}, true
	default:
		return Entry{}, false
	}
}

// driverCandidate is a package suggested by ubuntu-drivers for one
// device block.
type driverCandidate struct {
	pkg         string
	recommended bool
	vendor      string
	model       string
}

// parseDeviceCandidates reads "ubuntu-drivers devices" output. Blocks
// start with "== /sys/devices/... ==" and contain "key : value" lines;
// driver lines look like
//
//	driver : nvidia-driver-535 - distro non-free recommended
//
// Built-in drivers are already shipped with the kernel and are skipped.
// Malformed lines are ignored rather than failing the scan.
func parseDeviceCandidates(output string) []driverCandidate {
	var candidates []driverCandidate
	var vendor, model string
	seen := map[string]int{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "==") {
			vendor, model = "", ""
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "vendor":
			vendor = value
		case "model":
			model = value
		case "driver":
			fields := strings.Fields(value)
			if len(fields) == 0 {
				continue
			}
			if containsField(fields, "builtin") {
				continue
			}
			pkg := fields[0]
			recommended := containsField(fields, "recommended")
			// Multiple devices can suggest the same package (two GPUs
			// of the same family); keep one candidate per package.
			if i, ok := seen[pkg]; ok {
				if recommended {
					candidates[i].recommended = true
				}
				continue
			}
			seen[pkg] = len(candidates)
			candidates = append(candidates, driverCandidate{
				pkg:         pkg,
				recommended: recommended,
				vendor:      vendor,
				model:       model,
			})
		}
	}

	return candidates
}

func containsField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}
