package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opterm/opterm/internal/openproject"
)

// wpReloadedMsg carries a freshly fetched work package for the details view.
type wpReloadedMsg struct{ wp *openproject.WorkPackage }

// detailsScreen shows a single work package in full.
type detailsScreen struct {
	session *Session
	wp      openproject.WorkPackage
	body    viewport.Model
	spin    spinner.Model
	loading bool
	errText string
	width   int
	height  int
	ready   bool
}

func newDetailsScreen(session *Session, wp openproject.WorkPackage) *detailsScreen {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	return &detailsScreen{session: session, wp: wp, spin: spin}
}

func (s *detailsScreen) setSize(w, h int) {
	s.width, s.height = w, h
	bodyHeight := maxInt(h-12, 3)
	if !s.ready {
		s.body = viewport.New(w-4, bodyHeight)
		s.ready = true
	} else {
		s.body.Width = w - 4
		s.body.Height = bodyHeight
	}
	s.body.SetContent(s.renderBody())
}

func (s *detailsScreen) Init() tea.Cmd {
	return s.reload()
}

// reload re-fetches so edits made elsewhere, and the current lockVersion,
// are visible before the user presses e.
func (s *detailsScreen) reload() tea.Cmd {
	session := s.session
	id := s.wp.ID
	if session.Offline || session.Client == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
		defer cancel()
		wp, err := session.Client.WorkPackage(ctx, id)
		if err != nil {
			return loadFailedMsg{err: err}
		}
		return wpReloadedMsg{wp: wp}
	}
}

func (s *detailsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wpReloadedMsg:
		s.loading = false
		s.errText = ""
		s.wp = *msg.wp
		if s.ready {
			s.body.SetContent(s.renderBody())
		}
		return s, nil

	case wpSavedMsg:
		// An edit form just closed over this screen.
		s.wp = *msg.wp
		if s.ready {
			s.body.SetContent(s.renderBody())
		}
		return s, nil

	case loadFailedMsg:
		s.loading = false
		s.errText = openproject.UserMessage(msg.err)
		return s, nil

	case spinner.TickMsg:
		if !s.loading {
			return s, nil
		}
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyBack), key.Matches(msg, keyQuit):
			return s, pop()
		case key.Matches(msg, keyRefresh):
			s.loading = true
			s.errText = ""
			return s, tea.Batch(s.spin.Tick, s.reload())
		case key.Matches(msg, keyEdit):
			if s.session.Offline || s.session.Client == nil {
				s.errText = "Not available in offline mode"
				return s, nil
			}
			project := openproject.Project{}
			if s.wp.Project != nil {
				project = *s.wp.Project
			}
			return s, push(newEditForm(s.session, project, s.wp))
		}
	}

	var cmd tea.Cmd
	s.body, cmd = s.body.Update(msg)
	return s, cmd
}

func (s *detailsScreen) renderBody() string {
	var b strings.Builder
	wp := s.wp

	if wp.Status != nil {
		b.WriteString(statusStyle(wp.Status.Name).Render(wp.Status.Name))
		b.WriteString("  ")
	}
	if wp.Type != nil {
		b.WriteString(labelStyle.Render(wp.Type.Name))
		b.WriteString("  ")
	}
	if wp.Priority != nil {
		b.WriteString(priorityStyle(wp.Priority.Name).Render(wp.Priority.Name))
	}
	b.WriteString("\n\n")

	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	if wp.Project != nil {
		row("Project", wp.Project.Name)
	}
	var author, assignee string
	if wp.Author != nil {
		author = wp.Author.DisplayName()
	}
	if wp.Assignee != nil {
		assignee = wp.Assignee.DisplayName()
	}
	row("Author", author)
	row("Assignee", assignee)
	b.WriteString("\n")

	row("Start", wp.StartDate)
	row("Due", wp.DueDate)
	var estimated string
	if wp.EstimatedHours > 0 {
		estimated = openproject.FormatHours(wp.EstimatedHours)
	}
	row("Estimated", estimated)
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", "Progress")))
	b.WriteString(progressBar(wp.PercentageDone, 20))
	b.WriteString(" " + progressStyle(wp.PercentageDone).Render(fmt.Sprintf("%d%%", wp.PercentageDone)))
	b.WriteString("\n")
	if !wp.UpdatedAt.IsZero() {
		row("Updated", wp.UpdatedAt.Local().Format(time.RFC822))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Description"))
	b.WriteString("\n")
	if strings.TrimSpace(wp.Description) == "" {
		b.WriteString(dimStyle.Render("No description"))
	} else {
		b.WriteString(wp.Description)
	}
	b.WriteString("\n")
	return b.String()
}

func progressBar(percentage, width int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := percentage * width / 100
	return progressStyle(percentage).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

func (s *detailsScreen) View() string {
	var b strings.Builder

	title := titleStyle.Render(fmt.Sprintf("#%d", s.wp.ID)) + " " + s.wp.Subject
	if s.session.Offline {
		title += "  " + offlineBadge.String()
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	if s.ready {
		b.WriteString(boxStyle.Width(maxInt(s.width-2, 20)).Render(s.body.View()))
	} else {
		b.WriteString(s.renderBody())
	}
	b.WriteString("\n")

	switch {
	case s.loading:
		b.WriteString(s.spin.View() + " Refreshing...")
	case s.errText != "":
		b.WriteString(errorStyle.Render(s.errText))
	default:
		b.WriteString(helpHintStyle.Render("e: edit • r: refresh • esc: back"))
	}

	if s.width == 0 {
		return b.String()
	}
	return lipgloss.NewStyle().MaxWidth(s.width).Render(b.String())
}
