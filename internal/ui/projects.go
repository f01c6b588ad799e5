package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/opterm/opterm/internal/openproject"
)

// projectsScreen lists the active projects and is the app's home screen.
type projectsScreen struct {
	session   *Session
	table     table.Model
	spin      spinner.Model
	search    textinput.Model
	searching bool

	projects []openproject.Project
	filtered []openproject.Project
	loading  bool
	live     bool // a live (non-cache) listing has arrived
	degraded bool // server unreachable, showing cached data
	cachedAt time.Time
	errText  string
	width    int
	height   int
}

func newProjectsScreen(session *Session) *projectsScreen {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Identifier", Width: 20},
			{Title: "Name", Width: 40},
			{Title: "Status", Width: 10},
			{Title: "Public", Width: 8},
		}),
		table.WithFocused(true),
	)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	search := textinput.New()
	search.Placeholder = "Search projects..."
	search.Width = 40

	s := &projectsScreen{
		session: session,
		table:   t,
		spin:    spin,
		search:  search,
	}
	// Offline there is nothing to wait for; the cache read is synchronous
	// enough that the empty state is honest.
	s.loading = s.canRefresh()
	return s
}

func (s *projectsScreen) canRefresh() bool {
	return !s.session.Offline && s.session.Client != nil
}

func (s *projectsScreen) setSize(w, h int) {
	s.width, s.height = w, h
	s.table.SetHeight(maxInt(h-7, 3))
}

func (s *projectsScreen) Init() tea.Cmd {
	return tea.Batch(s.spin.Tick, s.loadFromCache(), s.refresh())
}

// loadFromCache paints the last snapshot while the live request runs.
func (s *projectsScreen) loadFromCache() tea.Cmd {
	session := s.session
	return func() tea.Msg {
		if session.Store == nil {
			return nil
		}
		projects, at, ok := session.Store.GetProjects()
		if !ok {
			return nil
		}
		return projectsLoadedMsg{projects: projects, fromCache: true, cachedAt: at}
	}
}

func (s *projectsScreen) refresh() tea.Cmd {
	session := s.session
	if !s.canRefresh() {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
		defer cancel()
		projects, err := session.Client.Projects(ctx, openproject.ProjectsOptions{ActiveOnly: true})
		if err != nil {
			return loadFailedMsg{err: err}
		}
		if session.Store != nil {
			if err := session.Store.PutProjects(projects); err != nil {
				session.Logger.Warn().Err(err).Msg("caching projects failed")
			}
		}
		return projectsLoadedMsg{projects: projects}
	}
}

func (s *projectsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case projectsLoadedMsg:
		if msg.fromCache && s.live {
			return s, nil // live data already on screen
		}
		s.projects = msg.projects
		if !msg.fromCache {
			s.live = true
			s.loading = false
			s.degraded = false
			s.cachedAt = time.Time{}
			s.errText = ""
		} else {
			s.cachedAt = msg.cachedAt
		}
		s.applyFilter()
		return s, nil

	case loadFailedMsg:
		s.loading = false
		s.errText = openproject.UserMessage(msg.err)
		if errors.Is(msg.err, openproject.ErrAuth) {
			return s, replace(newLoginScreen(s.session))
		}
		if errors.Is(msg.err, openproject.ErrUnavailable) || errors.Is(msg.err, openproject.ErrTimeout) {
			s.degraded = true
		}
		return s, nil

	case spinner.TickMsg:
		if !s.loading {
			return s, nil
		}
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		if s.searching {
			return s.updateSearch(msg)
		}
		switch {
		case key.Matches(msg, keyQuit):
			return s, tea.Quit
		case key.Matches(msg, keyHelp):
			return s, push(newHelpScreen(s.session))
		case key.Matches(msg, keyRefresh):
			if !s.canRefresh() {
				return s, nil
			}
			s.loading = true
			s.errText = ""
			return s, tea.Batch(s.spin.Tick, s.refresh())
		case key.Matches(msg, keySearch):
			s.searching = true
			s.search.Focus()
			return s, textinput.Blink
		case key.Matches(msg, keySelect):
			if p, ok := s.selected(); ok {
				return s, push(newWorkPackagesScreen(s.session, p))
			}
			return s, nil
		}
	}

	var cmd tea.Cmd
	s.table, cmd = s.table.Update(msg)
	return s, cmd
}

func (s *projectsScreen) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.searching = false
		s.search.SetValue("")
		s.search.Blur()
		s.applyFilter()
		return s, nil
	case "enter":
		s.searching = false
		s.search.Blur()
		return s, nil
	}
	var cmd tea.Cmd
	s.search, cmd = s.search.Update(msg)
	s.applyFilter()
	return s, cmd
}

// applyFilter rebuilds the visible rows from the full project list and the
// current query. The underlying slice is never mutated.
func (s *projectsScreen) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(s.search.Value()))
	if query == "" {
		s.filtered = append([]openproject.Project(nil), s.projects...)
	} else {
		s.filtered = nil
		for _, p := range s.projects {
			if strings.Contains(strings.ToLower(p.Name), query) ||
				strings.Contains(strings.ToLower(p.Identifier), query) {
				s.filtered = append(s.filtered, p)
			}
		}
	}

	rows := make([]table.Row, 0, len(s.filtered))
	for _, p := range s.filtered {
		status := "Active"
		if !p.Active {
			status = "Inactive"
		}
		public := "No"
		if p.Public {
			public = "Yes"
		}
		rows = append(rows, table.Row{strconv.Itoa(p.ID), p.Identifier, p.Name, status, public})
	}
	s.table.SetRows(rows)
	if s.table.Cursor() >= len(rows) {
		s.table.SetCursor(0)
	}
}

func (s *projectsScreen) selected() (openproject.Project, bool) {
	i := s.table.Cursor()
	if i < 0 || i >= len(s.filtered) {
		return openproject.Project{}, false
	}
	return s.filtered[i], true
}

func (s *projectsScreen) View() string {
	var b strings.Builder

	title := titleStyle.Render("Projects")
	if s.session.Offline || s.degraded {
		title += "  " + offlineBadge.String()
	}
	b.WriteString(title)
	b.WriteString("\n")

	if s.searching || s.search.Value() != "" {
		b.WriteString(s.search.View())
		b.WriteString("\n")
	}

	switch {
	case s.loading && len(s.filtered) == 0:
		b.WriteString("\n" + s.spin.View() + " Loading projects...\n")
	case s.errText != "" && len(s.filtered) == 0:
		b.WriteString("\n" + errorStyle.Render("Error loading projects: "+s.errText) + "\n")
	case len(s.filtered) == 0:
		b.WriteString("\n" + dimStyle.Render("No projects found") + "\n")
	default:
		b.WriteString(s.table.View())
		b.WriteString("\n")
	}

	var notes []string
	if !s.cachedAt.IsZero() {
		notes = append(notes, dimStyle.Render(fmt.Sprintf("cached %s ago", humanAge(time.Since(s.cachedAt)))))
	}
	if s.errText != "" && len(s.filtered) > 0 {
		notes = append(notes, errorStyle.Render(s.errText))
	}
	if len(notes) > 0 {
		b.WriteString(strings.Join(notes, "  "))
		b.WriteString("\n")
	}

	b.WriteString(helpHintStyle.Render("enter: work packages • r: refresh • /: search • ?: help • q: quit"))
	return b.String()
}

func humanAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
