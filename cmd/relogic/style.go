package main

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	accent  = lipgloss.Color("#8BC34A")
	primary = lipgloss.Color("#7D56F4")
	danger  = lipgloss.Color("#e53935")
	muted   = lipgloss.Color("#777777")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	okStyle    = lipgloss.NewStyle().Foreground(accent)
	failStyle  = lipgloss.NewStyle().Foreground(danger)
	dimStyle   = lipgloss.NewStyle().Foreground(muted)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1)
)
