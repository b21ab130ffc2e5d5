package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the terminal UI. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row in the results list.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Banner states.
	StatusOK       lipgloss.Color // drivers up to date
	StatusScanning lipgloss.Color // scan in flight
	StatusUpdates  lipgloss.Color // updates found
	StatusError    lipgloss.Color // scan or install failed

	// Per-package outcome markers.
	Succeeded lipgloss.Color
	Failed    lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Recommended driver badge.
	RecommendedBadge lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	StatusOK:       lipgloss.Color("114"), // green
	StatusScanning: lipgloss.Color("220"), // amber
	StatusUpdates:  lipgloss.Color("208"), // orange
	StatusError:    lipgloss.Color("196"), // red

	Succeeded: lipgloss.Color("114"),
	Failed:    lipgloss.Color("196"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	RecommendedBadge: lipgloss.Color("75"), // blue
}
