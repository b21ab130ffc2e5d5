// Package tui is the interactive terminal front-end: a scan page that
// drives the detector and a results page that lists updatable drivers
// and triggers installs. The model owns two single-flight task runners
// (one for scans, one for install batches); all subprocess work happens
// on their worker goroutines and comes back as bubbletea messages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/driverdeck/driverdeck/internal/config"
	"github.com/driverdeck/driverdeck/internal/driver"
	"github.com/driverdeck/driverdeck/internal/hwinfo"
	"github.com/driverdeck/driverdeck/internal/installer"
	"github.com/driverdeck/driverdeck/internal/logging"
	"github.com/driverdeck/driverdeck/internal/notify"
	"github.com/driverdeck/driverdeck/internal/taskrunner"
)

var log = logging.L("tui")

// page identifies which view is active.
type page int

const (
	pageScan page = iota
	pageResults
)

// bannerState drives the status banner's icon, color and default text.
type bannerState int

const (
	bannerOK bannerState = iota
	bannerScanning
	bannerUpdates
	bannerError
)

// activityBuffer bounds the progress event channel. Events beyond the
// buffer are dropped rather than blocking the worker goroutine.
const activityBuffer = 64

// maxLogLines caps the log viewport's backing buffer.
const maxLogLines = 500

// Model is the top-level bubbletea model.
type Model struct {
	cfg       *config.Config
	detector  *driver.Detector
	installer *installer.Installer
	notifier  *notify.Notifier
	host      hwinfo.Summary
	theme     Theme
	keys      KeyMap

	scanRunner    *taskrunner.Runner[driver.ScanResult]
	installRunner *taskrunner.Runner[[]installer.Outcome]

	// activity carries progress and log events from worker goroutines
	// into the bubbletea loop. Completion notifications travel on the
	// runners' own outcome channels instead.
	activity chan tea.Msg

	// Closed on cancellation to release the pending outcome listener.
	scanAbort    chan struct{}
	installAbort chan struct{}

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	page       page
	banner     bannerState
	bannerText string

	spin    spinner.Model
	bar     progress.Model
	percent float64

	logView  viewport.Model
	logLines []string

	// Results of the last completed scan.
	entries  []driver.Entry
	strategy string
	lastScan time.Time
	cursor   int

	scanning bool

	// Install state. confirmPackages non-nil means the confirmation
	// prompt is visible and keyboard input routes to it.
	confirmPackages []string
	installing      bool
	installStatus   string
	outcomes        map[string]installer.Outcome
	rebootNeeded    bool
}

// New builds the model and its task runners. The hardware summary is
// collected once up front; it does not change while the app runs.
func New(cfg *config.Config, detector *driver.Detector, inst *installer.Installer, notifier *notify.Notifier, host hwinfo.Summary) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		cfg:           cfg,
		detector:      detector,
		installer:     inst,
		notifier:      notifier,
		host:          host,
		theme:         DefaultTheme,
		keys:          DefaultKeyMap,
		scanRunner:    taskrunner.New[driver.ScanResult](),
		installRunner: taskrunner.New[[]installer.Outcome](),
		activity:      make(chan tea.Msg, activityBuffer),
		spin:          spin,
		bar:           progress.New(progress.WithDefaultGradient()),
		banner:        bannerOK,
		bannerText:    "Press s to scan for driver updates.",
		logLines:      []string{"System ready."},
	}
}

// Run drives the model on the alternate screen until the user quits.
func Run(model Model) error {
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return waitForActivity(model.activity)
}

// waitForActivity returns a command that blocks until the next worker
// event and delivers it as a message. Re-armed after every event.
func waitForActivity(activity <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-activity
	}
}

// listenScan waits for the scan task's single outcome. The abort
// channel releases the listener when the scan is cancelled, since a
// cancelled task never delivers.
func listenScan(outcomes <-chan taskrunner.Outcome[driver.ScanResult], abort <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case outcome := <-outcomes:
			return scanDoneMsg{outcome: outcome}
		case <-abort:
			return scanCancelledMsg{}
		}
	}
}

func listenInstall(outcomes <-chan taskrunner.Outcome[[]installer.Outcome], abort <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case outcome := <-outcomes:
			return installDoneMsg{outcome: outcome}
		case <-abort:
			return installCancelledMsg{}
		}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		return model.handleResize(message)

	case tea.KeyMsg:
		return model.handleKey(message)

	case spinner.TickMsg:
		if !model.scanning && !model.installing {
			return model, nil
		}
		var cmd tea.Cmd
		model.spin, cmd = model.spin.Update(message)
		return model, cmd

	case scanProgressMsg:
		return model.handleScanProgress(message)

	case scanDoneMsg:
		return model.handleScanDone(message)

	case scanCancelledMsg:
		return model, nil

	case installProgressMsg:
		return model.handleInstallProgress(message)

	case installDoneMsg:
		return model.handleInstallDone(message)

	case installCancelledMsg:
		return model, nil
	}
	return model, nil
}

func (model Model) handleResize(message tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	model.width = message.Width
	model.height = message.Height
	model.bar.Width = min(message.Width-8, 60)

	logHeight := max(message.Height-14, 3)
	if !model.ready {
		model.logView = viewport.New(message.Width-4, logHeight)
		model.ready = true
	} else {
		model.logView.Width = message.Width - 4
		model.logView.Height = logHeight
	}
	model.refreshLog()
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The confirmation prompt captures all input until answered.
	if model.confirmPackages != nil {
		switch {
		case key.Matches(message, model.keys.Confirm):
			packages := model.confirmPackages
			model.confirmPackages = nil
			return model.startInstall(packages)
		case key.Matches(message, model.keys.Dismiss):
			model.confirmPackages = nil
			model.appendLog("Update cancelled.")
		}
		return model, nil
	}

	if key.Matches(message, model.keys.Quit) {
		return model, tea.Quit
	}

	switch model.page {
	case pageScan:
		return model.handleScanPageKey(message)
	case pageResults:
		return model.handleResultsPageKey(message)
	}
	return model, nil
}

func (model Model) handleScanPageKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(message, model.keys.Scan) {
		return model, nil
	}
	if model.scanning {
		return model.cancelScan()
	}
	return model.startScan()
}

func (model Model) handleResultsPageKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}

	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.entries)-1 {
			model.cursor++
		}

	case key.Matches(message, model.keys.Update):
		if model.installing || len(model.entries) == 0 {
			return model, nil
		}
		model.confirmPackages = []string{model.entries[model.cursor].Package}

	case key.Matches(message, model.keys.UpdateAll):
		if model.installing || len(model.entries) == 0 {
			return model, nil
		}
		packages := make([]string, len(model.entries))
		for i, entry := range model.entries {
			packages[i] = entry.Package
		}
		model.confirmPackages = packages

	case key.Matches(message, model.keys.Rescan):
		if model.installing {
			return model, nil
		}
		model.page = pageScan
		model.logLines = []string{"System ready."}
		model.refreshLog()
		return model.startScan()

	case key.Matches(message, model.keys.Dismiss):
		if model.installing {
			return model.cancelInstall()
		}
	}
	return model, nil
}

func (model Model) startScan() (tea.Model, tea.Cmd) {
	abort := make(chan struct{})
	activity := model.activity

	outcomes, err := model.scanRunner.Start(context.Background(), "scan", func(ctx context.Context) (driver.ScanResult, error) {
		return model.detector.Scan(ctx, func(p driver.Progress) {
			select {
			case activity <- scanProgressMsg{progress: p}:
			default:
			}
		})
	})
	if err != nil {
		// Single-flight guard: the running scan is left untouched.
		model.appendLog("A scan is already running.")
		return model, nil
	}

	model.scanning = true
	model.scanAbort = abort
	model.banner = bannerScanning
	model.bannerText = "Scanning for drivers..."
	model.percent = 0
	model.logLines = nil
	model.appendLog("==> Scan started.")
	if strategy := model.cfg.Scan.Strategy; strategy != "" && strategy != "auto" {
		model.appendLog(fmt.Sprintf("Detection strategy pinned to %s by configuration.", strategy))
	}

	return model, tea.Batch(listenScan(outcomes, abort), model.spin.Tick)
}

func (model Model) cancelScan() (tea.Model, tea.Cmd) {
	if err := model.scanRunner.Cancel(); err != nil {
		return model, nil
	}
	close(model.scanAbort)
	model.scanAbort = nil
	model.scanning = false
	model.banner = bannerOK
	model.bannerText = "Scan cancelled."
	model.percent = 0
	model.appendLog("==> Scan cancelled. The running command is left to finish in the background.")
	return model, nil
}

func (model Model) handleScanProgress(message scanProgressMsg) (tea.Model, tea.Cmd) {
	progress := message.progress
	if model.scanning {
		model.percent = float64(progress.Percent) / 100
		model.bannerText = progress.Message
		if progress.Package != "" {
			model.appendLog(fmt.Sprintf("  found %s", progress.Package))
		} else if progress.Message != "" {
			model.appendLog(progress.Message)
		}
	}
	return model, waitForActivity(model.activity)
}

func (model Model) handleScanDone(message scanDoneMsg) (tea.Model, tea.Cmd) {
	model.scanning = false
	model.scanAbort = nil
	model.percent = 1

	outcome := message.outcome
	if outcome.Err != nil {
		model.banner = bannerError
		model.bannerText = "Scan failed. Check the log for details."
		if errors.Is(outcome.Err, driver.ErrDetectionUnavailable) {
			model.bannerText = "No driver detection tool is available on this system."
		}
		model.appendLog("ERROR: " + outcome.Err.Error())
		return model, nil
	}

	result := outcome.Value
	model.entries = result.Entries
	model.strategy = result.Strategy
	model.lastScan = time.Now()
	model.cursor = 0
	model.outcomes = nil
	model.rebootNeeded = false
	model.page = pageResults
	model.appendLog(fmt.Sprintf("Scan completed in %s via %s.", outcome.Duration.Round(time.Millisecond), result.Strategy))

	if len(result.Entries) == 0 {
		model.banner = bannerOK
		model.bannerText = "All your drivers are up to date!"
	} else {
		model.banner = bannerUpdates
		model.bannerText = fmt.Sprintf("Found %d driver update(s).", len(result.Entries))
	}

	notification := model.bannerText
	return model, func() tea.Msg {
		model.notifier.Send(context.Background(), "Driver scan finished", notification, notify.UrgencyNormal)
		return nil
	}
}

func (model Model) startInstall(packages []string) (tea.Model, tea.Cmd) {
	abort := make(chan struct{})
	activity := model.activity
	inst := model.installer

	outcomes, err := model.installRunner.Start(context.Background(), "install", func(ctx context.Context) ([]installer.Outcome, error) {
		return inst.Install(ctx, packages, func(p installer.Progress) {
			select {
			case activity <- installProgressMsg{progress: p}:
			default:
			}
		})
	})
	if err != nil {
		model.appendLog("An update is already running.")
		return model, nil
	}

	model.installing = true
	model.installAbort = abort
	model.installStatus = fmt.Sprintf("Updating %d package(s)...", len(packages))
	model.appendLog(">>> Starting update for: " + strings.Join(packages, ", "))

	return model, tea.Batch(listenInstall(outcomes, abort), model.spin.Tick)
}

func (model Model) cancelInstall() (tea.Model, tea.Cmd) {
	if err := model.installRunner.Cancel(); err != nil {
		return model, nil
	}
	close(model.installAbort)
	model.installAbort = nil
	model.installing = false
	model.installStatus = ""
	model.appendLog(">>> Update cancelled. Packages already being installed will finish.")
	return model, nil
}

func (model Model) handleInstallProgress(message installProgressMsg) (tea.Model, tea.Cmd) {
	progress := message.progress
	if model.installing {
		model.installStatus = fmt.Sprintf("[%d/%d] %s", progress.Index, progress.Total, progress.Message)
		model.appendLog(fmt.Sprintf("[%d/%d] %s: %s", progress.Index, progress.Total, progress.Package, progress.Message))
	}
	return model, waitForActivity(model.activity)
}

func (model Model) handleInstallDone(message installDoneMsg) (tea.Model, tea.Cmd) {
	model.installing = false
	model.installAbort = nil
	model.installStatus = ""

	outcome := message.outcome
	results := outcome.Value
	if model.outcomes == nil {
		model.outcomes = make(map[string]installer.Outcome, len(results))
	}

	succeeded, failed := 0, 0
	for _, result := range results {
		model.outcomes[result.Package] = result
		if result.Succeeded {
			succeeded++
			if result.RebootRequired {
				model.rebootNeeded = true
			}
		} else {
			failed++
		}
	}

	switch {
	case errors.Is(outcome.Err, installer.ErrAuthDenied):
		model.appendLog(">>> Authentication was dismissed or denied. No further packages were attempted.")
	case outcome.Err != nil:
		model.appendLog(">>> Update failed: " + outcome.Err.Error())
	default:
		model.appendLog(fmt.Sprintf(">>> Update finished: %d succeeded, %d failed.", succeeded, failed))
	}

	if model.rebootNeeded {
		model.appendLog(">>> Core drivers were updated. A reboot is recommended.")
	}

	// Installed entries stay listed with their outcome marker so the
	// user can see what happened; a rescan rebuilds the list.
	notification := fmt.Sprintf("%d package(s) updated, %d failed", succeeded, failed)
	log.Info("install batch finished", "succeeded", succeeded, "failed", failed, "rebootNeeded", model.rebootNeeded)
	return model, func() tea.Msg {
		model.notifier.Send(context.Background(), "Driver update finished", notification, notify.UrgencyNormal)
		return nil
	}
}

func (model *Model) appendLog(line string) {
	model.logLines = append(model.logLines, line)
	if len(model.logLines) > maxLogLines {
		model.logLines = model.logLines[len(model.logLines)-maxLogLines:]
	}
	model.refreshLog()
}

func (model *Model) refreshLog() {
	if !model.ready {
		return
	}
	model.logView.SetContent(strings.Join(model.logLines, "\n"))
	model.logView.GotoBottom()
}
