// Package notify sends desktop notifications through notify-send, so
// scan and install completions reach the user even when the terminal
// window is in the background. Everything degrades to a no-op when
// notifications are disabled or notify-send is absent.
package notify

import (
	"context"
	"time"

	"github.com/driverdeck/driverdeck/internal/executor"
	"github.com/driverdeck/driverdeck/internal/logging"
)

var log = logging.L("notify")

// Urgency levels understood by notify-send.
const (
	UrgencyLow      = "low"
	UrgencyNormal   = "normal"
	UrgencyCritical = "critical"
)

// Notifier sends desktop notifications.
type Notifier struct {
	runner  executor.Runner
	enabled bool
}

func New(runner executor.Runner, enabled bool) *Notifier {
	return &Notifier{runner: runner, enabled: enabled}
}

// Send shows a desktop notification. Failures are logged, never
// surfaced: a missing notification daemon must not break the app.
func (n *Notifier) Send(ctx context.Context, title, body, urgency string) {
	if !n.enabled {
		return
	}
	if !n.runner.Available("notify-send") {
		log.Debug("notify-send not available, skipping notification")
		return
	}

	args := []string{title, body}
	if urgency != "" {
		args = append([]string{"-u", urgency}, args...)
	}

	result, err := n.runner.Run(ctx, executor.Command{
		Name:    "notify-send",
		Args:    args,
		Timeout: 5 * time.Second,
	})
	if err != nil || result.ExitCode != 0 {
		log.Warn("notification failed", "title", title, logging.KeyError, err, "exitCode", result.ExitCode)
	}
}
