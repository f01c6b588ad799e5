package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opterm/opterm/internal/config"
	"github.com/opterm/opterm/internal/openproject"
)

// Navigation messages handled by the root model.
type (
	pushMsg    struct{ screen screen }
	popMsg     struct{}
	replaceMsg struct{ screen screen }

	configReloadedMsg struct{ cfg *config.Config }
)

func push(s screen) tea.Cmd {
	return func() tea.Msg { return pushMsg{screen: s} }
}

func pop() tea.Cmd {
	return func() tea.Msg { return popMsg{} }
}

func replace(s screen) tea.Cmd {
	return func() tea.Msg { return replaceMsg{screen: s} }
}

// Data messages produced by API commands.
type (
	projectsLoadedMsg struct {
		projects  []openproject.Project
		fromCache bool
		cachedAt  time.Time
	}
	workPackagesLoadedMsg struct {
		projectID int
		wps       []openproject.WorkPackage
		fromCache bool
		cachedAt  time.Time
	}
	loadFailedMsg struct{ err error }

	loginOKMsg struct {
		client *openproject.Client
		apiURL string
		apiKey string
	}
	loginFailMsg struct{ err error }

	wpSavedMsg        struct{ wp *openproject.WorkPackage }
	wpDeletedMsg      struct{ id int }
	mutationFailedMsg struct{ err error }

	formOptionsMsg struct {
		types      []openproject.Type
		statuses   []openproject.Status
		priorities []openproject.Priority
		assignees  []openproject.User
	}
	formStatusesMsg struct{ statuses []openproject.Status }
	formFailedMsg   struct{ err error }
)
