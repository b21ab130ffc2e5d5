package tui

import (
	"github.com/driverdeck/driverdeck/internal/driver"
	"github.com/driverdeck/driverdeck/internal/installer"
	"github.com/driverdeck/driverdeck/internal/taskrunner"
)

// scanProgressMsg carries a detector progress event into the bubbletea
// loop. Emitted by the scan worker through the activity channel.
type scanProgressMsg struct {
	progress driver.Progress
}

// scanDoneMsg is the single completion notification for a scan task.
// Never delivered for a cancelled scan; the runner drops the result.
type scanDoneMsg struct {
	outcome taskrunner.Outcome[driver.ScanResult]
}

// scanCancelledMsg confirms that Cancel was acknowledged and the
// pending listener has been released.
type scanCancelledMsg struct{}

// installProgressMsg carries a batch-install progress event.
type installProgressMsg struct {
	progress installer.Progress
}

// installDoneMsg is the single completion notification for an install
// batch. outcome.Err is ErrAuthDenied when the privilege prompt was
// rejected; per-package results are in outcome.Value either way.
type installDoneMsg struct {
	outcome taskrunner.Outcome[[]installer.Outcome]
}

// installCancelledMsg confirms install-batch cancellation.
type installCancelledMsg struct{}
