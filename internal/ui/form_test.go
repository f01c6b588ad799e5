package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opterm/opterm/internal/openproject"
)

func TestSelectFieldCycles(t *testing.T) {
	f := newSelectField("Type")
	f.setOptions([]selectOption{{id: 1, label: "Task"}, {id: 2, label: "Bug"}, {id: 3, label: "Feature"}})

	id, ok := f.value()
	require.True(t, ok)
	assert.Equal(t, 1, id)

	f.next()
	id, _ = f.value()
	assert.Equal(t, 2, id)

	f.prev()
	f.prev()
	id, _ = f.value()
	assert.Equal(t, 3, id)
}

func TestSelectFieldNoneOption(t *testing.T) {
	f := newSelectField("Assignee")
	f.setOptions([]selectOption{{id: 0, label: "(unassigned)"}, {id: 7, label: "Alice"}})

	_, ok := f.value()
	assert.False(t, ok)

	f.next()
	id, ok := f.value()
	require.True(t, ok)
	assert.Equal(t, 7, id)
}

func TestSelectFieldKeepsSelectionAcrossSetOptions(t *testing.T) {
	f := newSelectField("Status")
	f.setOptions([]selectOption{{id: 1, label: "New"}, {id: 2, label: "In Progress"}})
	f.next()

	f.setOptions([]selectOption{{id: 2, label: "In Progress"}, {id: 3, label: "Done"}})
	id, ok := f.value()
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestSelectFieldDisabledDoesNotMove(t *testing.T) {
	f := newSelectField("Status")
	f.setOptions([]selectOption{{id: 1, label: "New"}, {id: 2, label: "Done"}})
	f.disabled = true
	f.next()
	id, _ := f.value()
	assert.Equal(t, 1, id)
}

func TestCreateFormStatusDisabledUntilOptionsArrive(t *testing.T) {
	f := newCreateForm(testSession(), openproject.Project{ID: 1, Name: "Demo"})
	assert.True(t, f.statusSel.disabled)

	model, _ := f.Update(formStatusesMsg{statuses: []openproject.Status{{ID: 1, Name: "New"}}})
	f = model.(*formScreen)
	assert.False(t, f.statusSel.disabled)
}

func TestFormSaveRequiresSubject(t *testing.T) {
	f := newCreateForm(testSession(), openproject.Project{ID: 1})
	cmd := f.save()
	assert.Nil(t, cmd)
	assert.Equal(t, "Subject is required", f.errText)
}

func TestCreateFormSaveRequiresType(t *testing.T) {
	f := newCreateForm(testSession(), openproject.Project{ID: 1})
	f.subject.SetValue("New task")
	cmd := f.save()
	assert.Nil(t, cmd)
	assert.Equal(t, "Type is required", f.errText)
}

func TestEditFormPrefillsAndSelects(t *testing.T) {
	wp := openproject.WorkPackage{
		ID:          10,
		Subject:     "Fix login bug",
		Description: "details",
		LockVersion: 3,
		Type:        &openproject.Type{ID: 2, Name: "Bug"},
		Priority:    &openproject.Priority{ID: 9, Name: "High"},
		Assignee:    &openproject.User{ID: 7, Name: "Alice"},
	}
	session := testSession()
	session.Client = mustClient(t)
	f := newEditForm(session, openproject.Project{ID: 1}, wp)
	assert.Equal(t, "Fix login bug", f.subject.Value())
	assert.Equal(t, "details", f.description.Value())

	model, cmd := f.Update(formOptionsMsg{
		types:      []openproject.Type{{ID: 1, Name: "Task"}, {ID: 2, Name: "Bug"}},
		priorities: []openproject.Priority{{ID: 8, Name: "Normal"}, {ID: 9, Name: "High"}},
		assignees:  []openproject.User{{ID: 7, Name: "Alice"}},
	})
	f = model.(*formScreen)

	typeID, _ := f.typeSel.value()
	priorityID, _ := f.prioritySel.value()
	assigneeID, _ := f.assigneeSel.value()
	assert.Equal(t, 2, typeID)
	assert.Equal(t, 9, priorityID)
	assert.Equal(t, 7, assigneeID)
	// the allowed transitions for the current type load next
	assert.NotNil(t, cmd)
}

func TestFormKeepsEditsAfterConflict(t *testing.T) {
	session := testSession()
	session.Client = mustClient(t)
	f := newEditForm(session, openproject.Project{ID: 1}, openproject.WorkPackage{ID: 10, Subject: "Original", LockVersion: 1})
	f.subject.SetValue("My careful rewrite")
	f.busy = true

	model, _ := f.Update(mutationFailedMsg{err: openproject.ErrConflict})
	f = model.(*formScreen)

	assert.False(t, f.busy)
	assert.Equal(t, "My careful rewrite", f.subject.Value())
	assert.Contains(t, f.errText, "Modified by someone else")
}

func TestFormEscAbortsInFlightSave(t *testing.T) {
	f := newCreateForm(testSession(), openproject.Project{ID: 1})
	cancelled := false
	f.busy = true
	f.cancelSave = func() { cancelled = true }

	model, cmd := f.Update(tea.KeyMsg{Type: tea.KeyEsc})
	f = model.(*formScreen)

	// the request is cancelled but the form waits for the outcome
	assert.True(t, cancelled)
	assert.True(t, f.busy)
	assert.Nil(t, cmd)

	model, _ = f.Update(mutationFailedMsg{err: openproject.ErrUnavailable})
	f = model.(*formScreen)
	assert.False(t, f.busy)
	assert.Nil(t, f.cancelSave)
}

func TestFormEscCancels(t *testing.T) {
	f := newCreateForm(testSession(), openproject.Project{ID: 1})
	_, cmd := f.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, popMsg{}, cmd())
}

func TestFormTabSkipsDisabledStatus(t *testing.T) {
	f := newCreateForm(testSession(), openproject.Project{ID: 1})
	require.True(t, f.statusSel.disabled)

	f.setFocus(fieldType)
	model, _ := f.Update(tea.KeyMsg{Type: tea.KeyTab})
	f = model.(*formScreen)
	assert.Equal(t, fieldPriority, f.focus)
}
