package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	offlineBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("232")).
			Background(lipgloss.Color("208")).
			Padding(0, 1).
			SetString("OFFLINE")

	helpHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// statusStyle colours a status badge by its name, matching the colour
// rules of the detail panel: new is blue, in progress yellow, closed or
// done green, anything else cyan.
func statusStyle(name string) lipgloss.Style {
	lower := strings.ToLower(name)
	s := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch {
	case strings.Contains(lower, "new"):
		return s.Background(lipgloss.Color("27")).Foreground(lipgloss.Color("231"))
	case strings.Contains(lower, "progress"):
		return s.Background(lipgloss.Color("220")).Foreground(lipgloss.Color("232"))
	case strings.Contains(lower, "closed"), strings.Contains(lower, "done"):
		return s.Background(lipgloss.Color("34")).Foreground(lipgloss.Color("231"))
	default:
		return s.Background(lipgloss.Color("37")).Foreground(lipgloss.Color("231"))
	}
}

// priorityStyle highlights high priorities and dims low ones.
func priorityStyle(name string) lipgloss.Style {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "high"), strings.Contains(lower, "immediate"):
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	case strings.Contains(lower, "low"):
		return dimStyle
	default:
		return lipgloss.NewStyle()
	}
}

// progressStyle colours the progress figure by how far along it is.
func progressStyle(percentage int) lipgloss.Style {
	switch {
	case percentage >= 70:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("34"))
	case percentage >= 30:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	default:
		return lipgloss.NewStyle()
	}
}
