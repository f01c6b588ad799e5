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

// workPackagesScreen lists the work packages of one project and is the hub
// for create, edit and delete.
type workPackagesScreen struct {
	session   *Session
	project   openproject.Project
	table     table.Model
	spin      spinner.Model
	search    textinput.Model
	searching bool

	wps      []openproject.WorkPackage
	filtered []openproject.WorkPackage
	loading  bool
	live     bool
	degraded bool
	cachedAt time.Time
	errText  string
	notice   string
	confirm  *openproject.WorkPackage // pending delete target
	width    int
	height   int
}

func newWorkPackagesScreen(session *Session, project openproject.Project) *workPackagesScreen {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Subject", Width: 42},
			{Title: "Status", Width: 12},
			{Title: "Type", Width: 10},
			{Title: "Priority", Width: 10},
			{Title: "Assignee", Width: 18},
		}),
		table.WithFocused(true),
	)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	search := textinput.New()
	search.Placeholder = "Search work packages..."
	search.Width = 40

	s := &workPackagesScreen{
		session: session,
		project: project,
		table:   t,
		spin:    spin,
		search:  search,
	}
	s.loading = s.canRefresh()
	return s
}

func (s *workPackagesScreen) canRefresh() bool {
	return !s.session.Offline && s.session.Client != nil
}

func (s *workPackagesScreen) setSize(w, h int) {
	s.width, s.height = w, h
	s.table.SetHeight(maxInt(h-7, 3))
}

func (s *workPackagesScreen) Init() tea.Cmd {
	return tea.Batch(s.spin.Tick, s.loadFromCache(), s.refresh())
}

func (s *workPackagesScreen) loadFromCache() tea.Cmd {
	session := s.session
	projectID := s.project.ID
	return func() tea.Msg {
		if session.Store == nil {
			return nil
		}
		wps, at, ok := session.Store.GetWorkPackages(projectID)
		if !ok {
			return nil
		}
		return workPackagesLoadedMsg{projectID: projectID, wps: wps, fromCache: true, cachedAt: at}
	}
}

func (s *workPackagesScreen) refresh() tea.Cmd {
	session := s.session
	projectID := s.project.ID
	if !s.canRefresh() {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
		defer cancel()
		wps, err := session.Client.WorkPackages(ctx, projectID, openproject.Page{})
		if err != nil {
			return loadFailedMsg{err: err}
		}
		if session.Store != nil {
			if err := session.Store.PutWorkPackages(projectID, wps); err != nil {
				session.Logger.Warn().Err(err).Msg("caching work packages failed")
			}
		}
		return workPackagesLoadedMsg{projectID: projectID, wps: wps}
	}
}

func (s *workPackagesScreen) deleteCmd(id int) tea.Cmd {
	session := s.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
		defer cancel()
		if err := session.Client.DeleteWorkPackage(ctx, id); err != nil {
			return mutationFailedMsg{err: err}
		}
		return wpDeletedMsg{id: id}
	}
}

func (s *workPackagesScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case workPackagesLoadedMsg:
		if msg.projectID != s.project.ID {
			return s, nil
		}
		if msg.fromCache && s.live {
			return s, nil
		}
		s.wps = msg.wps
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

	case wpSavedMsg:
		// Delivered after the form pops back to this screen.
		s.notice = fmt.Sprintf("Work package #%d saved", msg.wp.ID)
		s.loading = s.canRefresh()
		return s, tea.Batch(s.spin.Tick, s.refresh())

	case wpDeletedMsg:
		s.notice = fmt.Sprintf("Work package #%d deleted", msg.id)
		s.loading = s.canRefresh()
		return s, tea.Batch(s.spin.Tick, s.refresh())

	case mutationFailedMsg:
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
		if s.confirm != nil {
			return s.updateConfirm(msg)
		}
		if s.searching {
			return s.updateSearch(msg)
		}
		s.notice = ""
		switch {
		case key.Matches(msg, keyBack), key.Matches(msg, keyQuit):
			return s, pop()
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
			if wp, ok := s.selected(); ok {
				return s, push(newDetailsScreen(s.session, wp))
			}
			return s, nil
		case key.Matches(msg, keyNew):
			if s.readOnly() {
				s.errText = "Not available in offline mode"
				return s, nil
			}
			return s, push(newCreateForm(s.session, s.project))
		case key.Matches(msg, keyEdit):
			if s.readOnly() {
				s.errText = "Not available in offline mode"
				return s, nil
			}
			if wp, ok := s.selected(); ok {
				return s, push(newEditForm(s.session, s.project, wp))
			}
			return s, nil
		case key.Matches(msg, keyDelete):
			if s.readOnly() {
				s.errText = "Not available in offline mode"
				return s, nil
			}
			if wp, ok := s.selected(); ok {
				s.confirm = &wp
			}
			return s, nil
		}
	}

	var cmd tea.Cmd
	s.table, cmd = s.table.Update(msg)
	return s, cmd
}

func (s *workPackagesScreen) readOnly() bool {
	return s.session.Offline || s.degraded || s.session.Client == nil
}

func (s *workPackagesScreen) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		target := s.confirm
		s.confirm = nil
		s.loading = true
		return s, tea.Batch(s.spin.Tick, s.deleteCmd(target.ID))
	case "n", "N", "esc":
		s.confirm = nil
		return s, nil
	}
	return s, nil
}

func (s *workPackagesScreen) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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

func (s *workPackagesScreen) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(s.search.Value()))
	if query == "" {
		s.filtered = append([]openproject.WorkPackage(nil), s.wps...)
	} else {
		s.filtered = nil
		for _, wp := range s.wps {
			if strings.Contains(strings.ToLower(wp.Subject), query) ||
				strings.Contains(strconv.Itoa(wp.ID), query) {
				s.filtered = append(s.filtered, wp)
			}
		}
	}

	rows := make([]table.Row, 0, len(s.filtered))
	for _, wp := range s.filtered {
		rows = append(rows, table.Row{
			strconv.Itoa(wp.ID),
			wp.Subject,
			nameOf(wp.Status),
			nameOfType(wp.Type),
			nameOfPriority(wp.Priority),
			assigneeName(wp.Assignee),
		})
	}
	s.table.SetRows(rows)
	if s.table.Cursor() >= len(rows) {
		s.table.SetCursor(0)
	}
}

func nameOf(s *openproject.Status) string {
	if s == nil {
		return "-"
	}
	return s.Name
}

func nameOfType(t *openproject.Type) string {
	if t == nil {
		return "-"
	}
	return t.Name
}

func nameOfPriority(p *openproject.Priority) string {
	if p == nil {
		return "-"
	}
	return p.Name
}

func assigneeName(u *openproject.User) string {
	if u == nil {
		return "-"
	}
	return u.DisplayName()
}

func (s *workPackagesScreen) selected() (openproject.WorkPackage, bool) {
	i := s.table.Cursor()
	if i < 0 || i >= len(s.filtered) {
		return openproject.WorkPackage{}, false
	}
	return s.filtered[i], true
}

func (s *workPackagesScreen) View() string {
	var b strings.Builder

	title := titleStyle.Render("Work Packages") + "  " + dimStyle.Render(s.project.Name)
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
		b.WriteString("\n" + s.spin.View() + " Loading work packages...\n")
	case s.errText != "" && len(s.filtered) == 0:
		b.WriteString("\n" + errorStyle.Render("Error loading work packages: "+s.errText) + "\n")
	case len(s.filtered) == 0:
		b.WriteString("\n" + dimStyle.Render("No work packages. Press n to create one.") + "\n")
	default:
		b.WriteString(s.table.View())
		b.WriteString("\n")
	}

	switch {
	case s.confirm != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete #%d %q? (y/n)", s.confirm.ID, s.confirm.Subject)))
		b.WriteString("\n")
	case s.notice != "":
		b.WriteString(labelStyle.Render(s.notice))
		b.WriteString("\n")
	case s.errText != "" && len(s.filtered) > 0:
		b.WriteString(errorStyle.Render(s.errText))
		b.WriteString("\n")
	case !s.cachedAt.IsZero():
		b.WriteString(dimStyle.Render(fmt.Sprintf("cached %s ago", humanAge(time.Since(s.cachedAt)))))
		b.WriteString("\n")
	}

	b.WriteString(helpHintStyle.Render("enter: details • n: new • e: edit • d: delete • r: refresh • /: search • esc: back"))
	return b.String()
}
