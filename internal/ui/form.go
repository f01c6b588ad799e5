package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/opterm/opterm/internal/openproject"
)

const (
	fieldSubject = iota
	fieldType
	fieldStatus
	fieldPriority
	fieldAssignee
	fieldDescription
	fieldCount
)

// formScreen creates a new work package or edits an existing one. Allowed
// statuses come from the server's form endpoints and depend on the chosen
// type, so the status select refreshes whenever the type changes.
type formScreen struct {
	session *Session
	project openproject.Project
	editing *openproject.WorkPackage // nil when creating

	subject     textinput.Model
	description textarea.Model
	typeSel     selectField
	statusSel   selectField
	prioritySel selectField
	assigneeSel selectField

	focus      int
	spin       spinner.Model
	busy       bool
	cancelSave context.CancelFunc
	loaded     bool
	errText    string
	width      int
	height     int
}

func newCreateForm(session *Session, project openproject.Project) *formScreen {
	f := newForm(session, project)
	f.statusSel.disabled = true // needs a type first
	return f
}

func newEditForm(session *Session, project openproject.Project, wp openproject.WorkPackage) *formScreen {
	f := newForm(session, project)
	f.editing = &wp
	f.subject.SetValue(wp.Subject)
	f.description.SetValue(wp.Description)
	return f
}

func newForm(session *Session, project openproject.Project) *formScreen {
	subject := textinput.New()
	subject.Placeholder = "Subject"
	subject.CharLimit = 255
	subject.Width = 60
	subject.Focus()

	description := textarea.New()
	description.Placeholder = "Description (markdown)"
	description.SetWidth(60)
	description.SetHeight(5)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &formScreen{
		session:     session,
		project:     project,
		subject:     subject,
		description: description,
		typeSel:     newSelectField("Type"),
		statusSel:   newSelectField("Status"),
		prioritySel: newSelectField("Priority"),
		assigneeSel: newSelectField("Assignee"),
		spin:        spin,
	}
}

func (f *formScreen) setSize(w, h int) { f.width, f.height = w, h }

func (f *formScreen) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, f.spin.Tick, f.loadOptions())
}

// loadOptions fetches types, priorities and assignees in parallel. Statuses
// need a type and follow in a second round trip.
func (f *formScreen) loadOptions() tea.Cmd {
	session := f.session
	projectID := f.project.ID
	if f.editing != nil && f.editing.Project != nil {
		projectID = f.editing.Project.ID
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
		defer cancel()

		var (
			types      []openproject.Type
			priorities []openproject.Priority
			assignees  []openproject.User
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			types, err = session.Client.Types(gctx, projectID)
			return err
		})
		g.Go(func() error {
			var err error
			priorities, err = session.Client.Priorities(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			assignees, err = session.Client.AvailableAssignees(gctx, projectID)
			return err
		})
		if err := g.Wait(); err != nil {
			return formFailedMsg{err: err}
		}
		return formOptionsMsg{types: types, priorities: priorities, assignees: assignees}
	}
}

func (f *formScreen) loadStatuses(typeID int) tea.Cmd {
	session := f.session
	projectID := f.project.ID
	editing := f.editing
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
		defer cancel()
		var (
			statuses []openproject.Status
			err      error
		)
		if editing != nil {
			statuses, err = session.Client.AllowedStatusTransitions(ctx, editing.ID, typeID, editing.LockVersion)
		} else {
			statuses, err = session.Client.AllowedStatusesForNew(ctx, projectID, typeID)
		}
		if err != nil {
			return formFailedMsg{err: err}
		}
		return formStatusesMsg{statuses: statuses}
	}
}

func (f *formScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case formOptionsMsg:
		f.loaded = true
		typeOptions := make([]selectOption, 0, len(msg.types))
		for _, t := range msg.types {
			typeOptions = append(typeOptions, selectOption{id: t.ID, label: t.Name})
		}
		// An edited work package may carry a type the project no longer
		// offers; keep it selectable so editing never discards it.
		if f.editing != nil && f.editing.Type != nil {
			found := false
			for _, o := range typeOptions {
				if o.id == f.editing.Type.ID {
					found = true
					break
				}
			}
			if !found {
				typeOptions = append(typeOptions, selectOption{id: f.editing.Type.ID, label: f.editing.Type.Name})
			}
		}
		f.typeSel.setOptions(typeOptions)

		priorityOptions := make([]selectOption, 0, len(msg.priorities))
		for _, p := range msg.priorities {
			priorityOptions = append(priorityOptions, selectOption{id: p.ID, label: p.Name})
		}
		f.prioritySel.setOptions(priorityOptions)

		assigneeOptions := make([]selectOption, 0, len(msg.assignees)+1)
		assigneeOptions = append(assigneeOptions, selectOption{id: 0, label: "(unassigned)"})
		for _, u := range msg.assignees {
			assigneeOptions = append(assigneeOptions, selectOption{id: u.ID, label: u.DisplayName()})
		}
		f.assigneeSel.setOptions(assigneeOptions)

		var cmd tea.Cmd
		if f.editing != nil {
			if f.editing.Type != nil {
				f.typeSel.selectID(f.editing.Type.ID)
			}
			if f.editing.Priority != nil {
				f.prioritySel.selectID(f.editing.Priority.ID)
			}
			if f.editing.Assignee != nil {
				f.assigneeSel.selectID(f.editing.Assignee.ID)
			}
			if typeID, ok := f.typeSel.value(); ok {
				cmd = f.loadStatuses(typeID)
			}
		}
		return f, cmd

	case formStatusesMsg:
		options := make([]selectOption, 0, len(msg.statuses))
		for _, st := range msg.statuses {
			options = append(options, selectOption{id: st.ID, label: st.Name})
		}
		f.statusSel.disabled = false
		f.statusSel.setOptions(options)
		if f.editing != nil && f.editing.Status != nil {
			f.statusSel.selectID(f.editing.Status.ID)
		}
		return f, nil

	case formFailedMsg:
		f.busy = false
		f.errText = openproject.UserMessage(msg.err)
		return f, nil

	case mutationFailedMsg:
		// The form stays up with the user's edits intact; a conflict asks
		// them to reload before retrying.
		f.busy = false
		f.cancelSave = nil
		f.errText = openproject.UserMessage(msg.err)
		return f, nil

	case spinner.TickMsg:
		if !f.busy && f.loaded {
			return f, nil
		}
		var cmd tea.Cmd
		f.spin, cmd = f.spin.Update(msg)
		return f, cmd

	case tea.KeyMsg:
		if f.busy {
			// esc aborts the in-flight save; the form stays up until the
			// cancellation result comes back, so a save that already
			// landed is still handled consistently.
			if msg.String() == "esc" && f.cancelSave != nil {
				f.cancelSave()
			}
			return f, nil
		}
		switch msg.String() {
		case "esc":
			return f, pop()
		case "ctrl+s":
			return f, f.save()
		case "tab":
			return f, f.setFocus((f.focus + 1) % fieldCount)
		case "shift+tab":
			return f, f.setFocus((f.focus - 1 + fieldCount) % fieldCount)
		case "left", "right":
			if cmd, handled := f.cycleSelect(msg.String() == "right"); handled {
				return f, cmd
			}
		case "enter":
			if f.focus != fieldDescription {
				return f, f.setFocus((f.focus + 1) % fieldCount)
			}
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	if f.focus == fieldSubject {
		f.subject, cmd = f.subject.Update(msg)
		cmds = append(cmds, cmd)
	}
	if f.focus == fieldDescription {
		f.description, cmd = f.description.Update(msg)
		cmds = append(cmds, cmd)
	}
	return f, tea.Batch(cmds...)
}

// cycleSelect advances the focused select field. Changing the type
// invalidates the allowed statuses, so those reload.
func (f *formScreen) cycleSelect(forward bool) (tea.Cmd, bool) {
	var sel *selectField
	switch f.focus {
	case fieldType:
		sel = &f.typeSel
	case fieldStatus:
		sel = &f.statusSel
	case fieldPriority:
		sel = &f.prioritySel
	case fieldAssignee:
		sel = &f.assigneeSel
	default:
		return nil, false
	}

	before, _ := sel.value()
	if forward {
		sel.next()
	} else {
		sel.prev()
	}
	after, _ := sel.value()

	if f.focus == fieldType && after != before {
		f.statusSel.disabled = true
		f.statusSel.setOptions(nil)
		return f.loadStatuses(after), true
	}
	return nil, true
}

func (f *formScreen) setFocus(i int) tea.Cmd {
	// Skip the status field while it has nothing to offer.
	if i == fieldStatus && f.statusSel.disabled {
		if i > f.focus || (f.focus == fieldCount-1 && i == 0) {
			i++
		} else {
			i--
		}
	}
	f.focus = i

	f.subject.Blur()
	f.description.Blur()
	f.typeSel.focused = false
	f.statusSel.focused = false
	f.prioritySel.focused = false
	f.assigneeSel.focused = false

	switch i {
	case fieldSubject:
		return f.subject.Focus()
	case fieldDescription:
		return f.description.Focus()
	case fieldType:
		f.typeSel.focused = true
	case fieldStatus:
		f.statusSel.focused = true
	case fieldPriority:
		f.prioritySel.focused = true
	case fieldAssignee:
		f.assigneeSel.focused = true
	}
	return nil
}

func (f *formScreen) save() tea.Cmd {
	subject := strings.TrimSpace(f.subject.Value())
	if subject == "" {
		f.errText = "Subject is required"
		return nil
	}
	if _, ok := f.typeSel.value(); !ok && f.editing == nil {
		f.errText = "Type is required"
		return nil
	}
	f.errText = ""
	f.busy = true

	if f.editing == nil {
		return tea.Batch(f.spin.Tick, f.createCmd(subject))
	}
	return tea.Batch(f.spin.Tick, f.updateCmd(subject))
}

func (f *formScreen) createCmd(subject string) tea.Cmd {
	session := f.session
	draft := openproject.Draft{
		ProjectID:   f.project.ID,
		Subject:     subject,
		Description: f.description.Value(),
	}
	draft.TypeID, _ = f.typeSel.value()
	draft.StatusID, _ = f.statusSel.value()
	draft.PriorityID, _ = f.prioritySel.value()
	draft.AssigneeID, _ = f.assigneeSel.value()

	ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
	f.cancelSave = cancel
	return func() tea.Msg {
		defer cancel()
		wp, err := session.Client.CreateWorkPackage(ctx, draft)
		if err != nil {
			return mutationFailedMsg{err: err}
		}
		return savedAndClose(wp)()
	}
}

func (f *formScreen) updateCmd(subject string) tea.Cmd {
	session := f.session
	description := f.description.Value()
	patch := openproject.Patch{
		LockVersion: f.editing.LockVersion,
		Subject:     &subject,
		Description: &description,
	}
	if id, ok := f.statusSel.value(); ok {
		patch.StatusID = &id
	}
	if id, ok := f.prioritySel.value(); ok {
		patch.PriorityID = &id
	}
	// Assignee is always sent; zero clears the assignment.
	assigneeID, _ := f.assigneeSel.value()
	patch.AssigneeID = &assigneeID

	id := f.editing.ID
	ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
	f.cancelSave = cancel
	return func() tea.Msg {
		defer cancel()
		wp, err := session.Client.UpdateWorkPackage(ctx, id, patch)
		if err != nil {
			return mutationFailedMsg{err: err}
		}
		return savedAndClose(wp)()
	}
}

// savedAndClose pops the form and then delivers the save to the screen
// underneath, in that order.
func savedAndClose(wp *openproject.WorkPackage) func() tea.Msg {
	return func() tea.Msg {
		return tea.Sequence(pop(), func() tea.Msg { return wpSavedMsg{wp: wp} })()
	}
}

func (f *formScreen) View() string {
	var b strings.Builder

	if f.editing == nil {
		b.WriteString(titleStyle.Render("New Work Package"))
		b.WriteString("  " + dimStyle.Render(f.project.Name))
	} else {
		b.WriteString(titleStyle.Render(fmt.Sprintf("Edit #%d", f.editing.ID)))
	}
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Subject"))
	b.WriteString("\n")
	b.WriteString(f.subject.View())
	b.WriteString("\n\n")

	selects := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().MarginRight(3).Render(f.typeSel.view()),
		lipgloss.NewStyle().MarginRight(3).Render(f.statusSel.view()),
		lipgloss.NewStyle().MarginRight(3).Render(f.prioritySel.view()),
		f.assigneeSel.view(),
	)
	b.WriteString(selects)
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Description"))
	b.WriteString("\n")
	b.WriteString(f.description.View())
	b.WriteString("\n\n")

	switch {
	case f.busy:
		b.WriteString(f.spin.View() + " Saving...")
	case !f.loaded:
		b.WriteString(f.spin.View() + " Loading options...")
	case f.errText != "":
		b.WriteString(errorStyle.Render(f.errText))
	default:
		b.WriteString(helpHintStyle.Render("ctrl+s: save • tab: next field • ←/→: change • esc: cancel"))
	}

	box := boxStyle.Render(b.String())
	if f.width == 0 {
		return box
	}
	return lipgloss.Place(f.width, f.height, lipgloss.Center, lipgloss.Center, box)
}
