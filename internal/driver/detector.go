package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driverdeck/driverdeck/internal/config"
	"github.com/driverdeck/driverdeck/internal/executor"
	"github.com/driverdeck/driverdeck/internal/logging"
)

var log = logging.L("detector")

// Strategy is one way of enumerating updatable driver packages.
type Strategy interface {
	Name() string
	// Available reports whether the strategy's underlying tool exists.
	Available() bool
	Scan(ctx context.Context, progress ProgressFunc) ([]Entry, error)
}

// Detector tries strategies in order and returns the first successful
// scan. A strategy that is unavailable or fails falls through to the
// next one; the fallback therefore runs at most once per scan.
type Detector struct {
	strategies []Strategy
}

// NewDetector builds a detector from config. The "auto" strategy probes
// ubuntu-drivers first with the apt fallback second; naming a strategy
// restricts detection to it alone.
func NewDetector(cfg *config.Config, runner executor.Runner) *Detector {
	scanTimeout := time.Duration(cfg.Scan.TimeoutSeconds) * time.Second

	ubuntuDrivers := NewUbuntuDriversStrategy(runner, scanTimeout)
	apt := NewAptStrategy(runner, AptStrategyOptions{
		Refresh:  cfg.Scan.RefreshPackageLists,
		Patterns: cfg.Scan.DriverMatchPatterns,
		Timeout:  scanTimeout,
	})

	switch cfg.Scan.Strategy {
	case "ubuntu-drivers":
		return &Detector{strategies: []Strategy{ubuntuDrivers}}
	case "apt":
		return &Detector{strategies: []Strategy{apt}}
	default:
		return &Detector{strategies: []Strategy{ubuntuDrivers, apt}}
	}
}

// NewDetectorWithStrategies builds a detector with an explicit strategy
// order.
func NewDetectorWithStrategies(strategies ...Strategy) *Detector {
	return &Detector{strategies: strategies}
}

// Scan runs the first usable strategy. When no strategy can execute,
// the error wraps ErrDetectionUnavailable together with any strategy
// failures for display.
func (d *Detector) Scan(ctx context.Context, progress ProgressFunc) (ScanResult, error) {
	var errs []error

	for _, strategy := range d.strategies {
		if err := ctx.Err(); err != nil {
			return ScanResult{}, err
		}

		if !strategy.Available() {
			log.Info("strategy unavailable, trying next", logging.KeyStrategy, strategy.Name())
			errs = append(errs, fmt.Errorf("%s: not available", strategy.Name()))
			continue
		}

		progress.emit(Progress{Percent: 5, Message: fmt.Sprintf("Scanning with %s", strategy.Name())})
		entries, err := strategy.Scan(ctx, progress)
		if err != nil {
			if ctx.Err() != nil {
				return ScanResult{}, ctx.Err()
			}
			log.Warn("strategy failed, trying next", logging.KeyStrategy, strategy.Name(), logging.KeyError, err)
			errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}

		progress.emit(Progress{Percent: 100, Message: "Scan complete"})
		log.Info("scan complete", logging.KeyStrategy, strategy.Name(), "entries", len(entries))
		return ScanResult{Entries: entries, Strategy: strategy.Name()}, nil
	}

	if len(errs) > 0 {
		return ScanResult{}, fmt.Errorf("%w: %w", ErrDetectionUnavailable, errors.Join(errs...))
	}
	return ScanResult{}, ErrDetectionUnavailable
}
