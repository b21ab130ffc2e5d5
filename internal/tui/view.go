package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/driverdeck/driverdeck/internal/driver"
)

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "loading..."
	}

	var body string
	switch model.page {
	case pageScan:
		body = model.viewScanPage()
	case pageResults:
		body = model.viewResultsPage()
	}

	sections := []string{
		model.viewTitle(),
		model.viewBanner(),
		body,
		model.viewLog(),
		model.viewFooter(),
	}
	return strings.Join(sections, "\n")
}

func (model Model) viewTitle() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(model.theme.HeaderForeground).
		Render("Driver Updater")

	host := model.host.Hostname
	if model.host.OSVersion != "" {
		host = fmt.Sprintf("%s · %s · %s", host, model.host.OSVersion, model.host.Kernel)
	}
	hostLine := lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(host)
	return title + "  " + hostLine
}

func (model Model) viewBanner() string {
	icon, color := "✔", model.theme.StatusOK
	switch model.banner {
	case bannerScanning:
		icon, color = model.spin.View(), model.theme.StatusScanning
	case bannerUpdates:
		icon, color = "!", model.theme.StatusUpdates
	case bannerError:
		icon, color = "✖", model.theme.StatusError
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(model.theme.BorderColor).
		Padding(0, 1).
		Width(max(model.width-2, 20))

	text := lipgloss.NewStyle().Bold(true).Foreground(color).Render(icon) +
		" " + lipgloss.NewStyle().Foreground(model.theme.NormalText).Render(model.bannerText)
	return style.Render(text)
}

func (model Model) viewScanPage() string {
	var lines []string

	if model.scanning {
		lines = append(lines,
			"",
			"  "+model.bar.ViewAs(model.percent),
			"",
			lipgloss.NewStyle().Foreground(model.theme.HelpText).Render("  s: cancel scan"),
		)
	} else {
		gpu := model.host.GPUModel
		if gpu == "" {
			gpu = "unknown GPU"
		}
		lines = append(lines,
			"",
			lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  "+gpu),
			"",
			lipgloss.NewStyle().Foreground(model.theme.HelpText).Render("  s: start scan   q: quit"),
		)
	}
	return strings.Join(lines, "\n")
}

func (model Model) viewResultsPage() string {
	var lines []string

	header := fmt.Sprintf("Found %d driver update(s)", len(model.entries))
	if len(model.entries) == 0 {
		header = "All drivers are up to date"
	}
	if model.strategy != "" {
		header += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  via " + model.strategy)
	}
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(header), "")

	if len(model.entries) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  No driver updates are currently available."))
	}

	for i, entry := range model.entries {
		lines = append(lines, model.viewEntry(entry, i == model.cursor))
	}

	if model.rebootNeeded {
		lines = append(lines, "",
			lipgloss.NewStyle().Bold(true).Foreground(model.theme.StatusUpdates).
				Render("  Core drivers were updated. A reboot is recommended."))
	}

	switch {
	case model.confirmPackages != nil:
		prompt := fmt.Sprintf("Update %d package(s)? (%s)  y: yes  n: no",
			len(model.confirmPackages), strings.Join(model.confirmPackages, ", "))
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Foreground(model.theme.StatusUpdates).Render(prompt))
	case model.installing:
		lines = append(lines, "", model.spin.View()+" "+model.installStatus,
			lipgloss.NewStyle().Foreground(model.theme.HelpText).Render("  Esc: cancel remaining packages"))
	default:
		lines = append(lines, "",
			lipgloss.NewStyle().Foreground(model.theme.HelpText).
				Render("  Enter: update   a: update all   r: rescan   j/k: move   q: quit"))
	}
	return strings.Join(lines, "\n")
}

// viewEntry renders one row of the results list: package, hardware
// description, version transition, badges and the last install outcome.
func (model Model) viewEntry(entry driver.Entry, selected bool) string {
	name := entry.Package
	if entry.Recommended {
		name += " " + lipgloss.NewStyle().Foreground(model.theme.RecommendedBadge).Render("[recommended]")
	}

	hardware := entry.Model
	if entry.Vendor != "" {
		hardware = entry.Vendor + " " + entry.Model
	}
	if hardware == "" {
		hardware = "System package"
	}

	versions := fmt.Sprintf("%s → %s", entry.CurrentVersion, entry.AvailableVersion)
	if !entry.Installed() {
		versions = fmt.Sprintf("not installed → %s", entry.AvailableVersion)
	}

	row := fmt.Sprintf("%-42s %-30s %s", name, hardware, versions)

	if outcome, ok := model.outcomes[entry.Package]; ok {
		if outcome.Succeeded {
			row += "  " + lipgloss.NewStyle().Foreground(model.theme.Succeeded).Render("✔ updated")
		} else {
			row += "  " + lipgloss.NewStyle().Foreground(model.theme.Failed).Render("✖ "+outcome.Message)
		}
	}

	style := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	cursor := "  "
	if selected {
		style = style.
			Background(model.theme.SelectedBackground).
			Foreground(model.theme.SelectedForeground)
		cursor = "> "
	}
	return style.Render(cursor + row)
}

func (model Model) viewLog() string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(model.theme.BorderColor).
		Padding(0, 1)
	return border.Render(model.logView.View())
}

func (model Model) viewFooter() string {
	parts := []string{}
	if !model.lastScan.IsZero() {
		parts = append(parts, "last scan "+humanize.Time(model.lastScan))
	}
	if model.host.Uptime > 0 {
		parts = append(parts, "up "+humanize.RelTime(time.Now().Add(-model.host.Uptime), time.Now(), "", ""))
	}
	parts = append(parts, fmt.Sprintf("%d log line(s)", len(model.logLines)))
	return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(strings.Join(parts, "  ·  "))
}
