// Package driver enumerates updatable hardware driver packages. Two
// strategies are supported: the ubuntu-drivers detection tool, and a
// fallback that filters apt's upgradable list down to driver-related
// packages. A Detector probes strategies in order and uses the first
// one that can run.
package driver

import "errors"

// Entry is one updatable (or recommended-for-install) driver package.
// Entries are immutable once produced; every scan builds a fresh list.
type Entry struct {
	Package          string
	CurrentVersion   string // "(none)" when the package is not installed
	AvailableVersion string // "" when the candidate version is unknown
	Recommended      bool
	Vendor           string
	Model            string
	Source           string // strategy that produced the entry
}

// Installed reports whether the package is currently installed.
func (e Entry) Installed() bool {
	return e.CurrentVersion != "" && e.CurrentVersion != NoneVersion
}

// NoneVersion is apt's marker for a package with no installed version.
const NoneVersion = "(none)"

// ScanResult is the outcome of one completed scan, handed to the UI by
// value.
type ScanResult struct {
	Entries  []Entry
	Strategy string
}

// Progress describes an in-flight scan's state.
type Progress struct {
	Percent int
	Message string
	Package string
}

// ProgressFunc receives progress updates during a scan. May be nil.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(p Progress) {
	if f != nil {
		f(p)
	}
}

// ErrDetectionUnavailable means no detection strategy could execute:
// neither ubuntu-drivers nor apt is usable on this system.
var ErrDetectionUnavailable = errors.New("no driver detection strategy available")
