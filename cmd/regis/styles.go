package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for terminal output
const (
	colorPrimary = "#7C3AED"
	colorSuccess = "#10B981"
	colorError   = "#EF4444"
	colorWarning = "#F59E0B"
	colorGray    = "#6B7280"
	colorInfo    = "#3B82F6"
)

var (
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)).
			Width(10)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// status renders ok as a colored yes/no.
func status(ok bool) string {
	if ok {
		return successStyle.Render("yes")
	}
	return errorStyle.Render("no")
}
