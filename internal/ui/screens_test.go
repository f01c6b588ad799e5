package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opterm/opterm/internal/openproject"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleProjects() []openproject.Project {
	return []openproject.Project{
		{ID: 1, Identifier: "demo-project", Name: "Demo project", Active: true, Public: true},
		{ID: 2, Identifier: "internal", Name: "Internal tooling", Active: true},
		{ID: 3, Identifier: "archive", Name: "Old archive", Active: false},
	}
}

func sampleWorkPackages() []openproject.WorkPackage {
	return []openproject.WorkPackage{
		{ID: 10, Subject: "Fix login bug", Status: &openproject.Status{ID: 1, Name: "New"}},
		{ID: 11, Subject: "Write docs", Status: &openproject.Status{ID: 2, Name: "In Progress"}},
	}
}

func TestProjectsLiveListingWinsOverLateCache(t *testing.T) {
	s := newProjectsScreen(testSession())

	model, _ := s.Update(projectsLoadedMsg{projects: sampleProjects()[:1]})
	s = model.(*projectsScreen)
	require.True(t, s.live)

	// A slow cache read arriving after live data must not clobber it.
	model, _ = s.Update(projectsLoadedMsg{projects: sampleProjects(), fromCache: true, cachedAt: time.Now()})
	s = model.(*projectsScreen)
	assert.Len(t, s.filtered, 1)
	assert.True(t, s.cachedAt.IsZero())
}

func TestProjectsCacheRendersBeforeLiveData(t *testing.T) {
	s := newProjectsScreen(testSession())
	at := time.Now().Add(-10 * time.Minute)

	model, _ := s.Update(projectsLoadedMsg{projects: sampleProjects(), fromCache: true, cachedAt: at})
	s = model.(*projectsScreen)

	assert.Len(t, s.filtered, 3)
	assert.Equal(t, at, s.cachedAt)
	assert.Contains(t, s.View(), "cached 10m ago")
}

func TestProjectsSearchFiltersNameAndIdentifier(t *testing.T) {
	s := newProjectsScreen(testSession())
	model, _ := s.Update(projectsLoadedMsg{projects: sampleProjects()})
	s = model.(*projectsScreen)

	model, _ = s.Update(keyRunes("/"))
	s = model.(*projectsScreen)
	require.True(t, s.searching)

	for _, r := range "intern" {
		model, _ = s.Update(keyRunes(string(r)))
		s = model.(*projectsScreen)
	}
	require.Len(t, s.filtered, 1)
	assert.Equal(t, "Internal tooling", s.filtered[0].Name)

	// esc clears the query and restores the full list
	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	s = model.(*projectsScreen)
	assert.False(t, s.searching)
	assert.Len(t, s.filtered, 3)
}

func TestProjectsLoadFailureShowsMessage(t *testing.T) {
	s := newProjectsScreen(testSession())
	model, _ := s.Update(loadFailedMsg{err: openproject.ErrValidation})
	s = model.(*projectsScreen)

	assert.False(t, s.loading)
	assert.NotEmpty(t, s.errText)
	assert.Contains(t, s.View(), "Error loading projects")
}

func TestProjectsOfflineEmptyCacheShowsEmptyState(t *testing.T) {
	session := testSession()
	session.Offline = true
	s := newProjectsScreen(session)

	require.False(t, s.loading)
	view := s.View()
	assert.Contains(t, view, "No projects found")
	assert.Contains(t, view, "OFFLINE")
	assert.NotContains(t, view, "Loading projects")

	// r has nothing to refresh offline and must not re-enter the spinner
	model, cmd := s.Update(keyRunes("r"))
	s = model.(*projectsScreen)
	assert.Nil(t, cmd)
	assert.False(t, s.loading)
}

func TestProjectsOfflineSpinnerDoesNotTick(t *testing.T) {
	session := testSession()
	session.Offline = true
	s := newProjectsScreen(session)

	// with loading false the tick chain stops instead of re-arming forever
	model, cmd := s.Update(s.spin.Tick().(spinner.TickMsg))
	s = model.(*projectsScreen)
	assert.Nil(t, cmd)
}

func TestWorkPackagesOfflineEmptyCacheShowsEmptyState(t *testing.T) {
	session := testSession()
	session.Offline = true
	s := newWorkPackagesScreen(session, openproject.Project{ID: 1, Name: "Demo"})

	require.False(t, s.loading)
	view := s.View()
	assert.Contains(t, view, "No work packages")
	assert.Contains(t, view, "OFFLINE")
	assert.NotContains(t, view, "Loading work packages")

	model, cmd := s.Update(keyRunes("r"))
	s = model.(*workPackagesScreen)
	assert.Nil(t, cmd)
	assert.False(t, s.loading)
}

func TestProjectsAuthFailureReturnsToLogin(t *testing.T) {
	s := newProjectsScreen(testSession())
	_, cmd := s.Update(loadFailedMsg{err: openproject.ErrAuth})
	require.NotNil(t, cmd)
	msg, ok := cmd().(replaceMsg)
	require.True(t, ok)
	assert.IsType(t, &loginScreen{}, msg.screen)
}

func TestProjectsUnreachableServerShowsOfflineBadge(t *testing.T) {
	s := newProjectsScreen(testSession())
	model, _ := s.Update(projectsLoadedMsg{projects: sampleProjects(), fromCache: true, cachedAt: time.Now()})
	s = model.(*projectsScreen)
	model, _ = s.Update(loadFailedMsg{err: openproject.ErrUnavailable})
	s = model.(*projectsScreen)

	assert.True(t, s.degraded)
	assert.Contains(t, s.View(), "OFFLINE")

	// a later successful refresh clears the badge
	model, _ = s.Update(projectsLoadedMsg{projects: sampleProjects()})
	s = model.(*projectsScreen)
	assert.False(t, s.degraded)
}

func TestProjectsEnterOpensWorkPackages(t *testing.T) {
	s := newProjectsScreen(testSession())
	model, _ := s.Update(projectsLoadedMsg{projects: sampleProjects()})
	s = model.(*projectsScreen)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(pushMsg)
	require.True(t, ok)
	wps, ok := msg.screen.(*workPackagesScreen)
	require.True(t, ok)
	assert.Equal(t, 1, wps.project.ID)
}

func TestWorkPackagesDeleteNeedsConfirmation(t *testing.T) {
	session := testSession()
	session.Offline = false
	session.Client = mustClient(t)
	s := newWorkPackagesScreen(session, openproject.Project{ID: 1, Name: "Demo"})
	model, _ := s.Update(workPackagesLoadedMsg{projectID: 1, wps: sampleWorkPackages()})
	s = model.(*workPackagesScreen)

	model, _ = s.Update(keyRunes("d"))
	s = model.(*workPackagesScreen)
	require.NotNil(t, s.confirm)
	assert.Contains(t, s.View(), `Delete #10 "Fix login bug"? (y/n)`)

	// n cancels without issuing anything
	model, cmd := s.Update(keyRunes("n"))
	s = model.(*workPackagesScreen)
	assert.Nil(t, s.confirm)
	assert.Nil(t, cmd)
}

func TestWorkPackagesMutationsBlockedOffline(t *testing.T) {
	session := testSession()
	session.Offline = true
	s := newWorkPackagesScreen(session, openproject.Project{ID: 1})
	model, _ := s.Update(workPackagesLoadedMsg{projectID: 1, wps: sampleWorkPackages()})
	s = model.(*workPackagesScreen)

	for _, k := range []string{"n", "e", "d"} {
		model, cmd := s.Update(keyRunes(k))
		s = model.(*workPackagesScreen)
		assert.Nil(t, cmd, "key %q", k)
		assert.Equal(t, "Not available in offline mode", s.errText, "key %q", k)
		s.errText = ""
	}
}

func TestWorkPackagesIgnoresOtherProjectsListing(t *testing.T) {
	s := newWorkPackagesScreen(testSession(), openproject.Project{ID: 1})
	model, _ := s.Update(workPackagesLoadedMsg{projectID: 2, wps: sampleWorkPackages()})
	s = model.(*workPackagesScreen)
	assert.Empty(t, s.filtered)
}

func TestWorkPackagesSavedMessageTriggersRefresh(t *testing.T) {
	session := testSession()
	session.Client = mustClient(t)
	s := newWorkPackagesScreen(session, openproject.Project{ID: 1})

	model, cmd := s.Update(wpSavedMsg{wp: &openproject.WorkPackage{ID: 42}})
	s = model.(*workPackagesScreen)
	assert.True(t, s.loading)
	assert.NotNil(t, cmd)
	assert.Contains(t, s.View(), "Work package #42 saved")
}

func TestDetailsRendersFields(t *testing.T) {
	wp := openproject.WorkPackage{
		ID:             10,
		Subject:        "Fix login bug",
		Description:    "Users get logged out.",
		StartDate:      "2026-01-05",
		DueDate:        "2026-01-19",
		EstimatedHours: 4.5,
		PercentageDone: 50,
		Status:         &openproject.Status{ID: 1, Name: "In Progress"},
		Priority:       &openproject.Priority{ID: 9, Name: "High"},
		Assignee:       &openproject.User{ID: 3, Name: "Alice Adams"},
	}
	s := newDetailsScreen(testSession(), wp)
	view := s.View()

	assert.Contains(t, view, "#10")
	assert.Contains(t, view, "Fix login bug")
	assert.Contains(t, view, "In Progress")
	assert.Contains(t, view, "Alice Adams")
	assert.Contains(t, view, "4.5h")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "Users get logged out.")
}

func TestDetailsPicksUpSavedEdit(t *testing.T) {
	s := newDetailsScreen(testSession(), sampleWorkPackages()[0])
	model, _ := s.Update(wpSavedMsg{wp: &openproject.WorkPackage{ID: 10, Subject: "Renamed", LockVersion: 2}})
	s = model.(*detailsScreen)
	assert.Equal(t, "Renamed", s.wp.Subject)
	assert.Equal(t, 2, s.wp.LockVersion)
}

func TestHelpClosesOnAnyKey(t *testing.T) {
	s := newHelpScreen(testSession())
	_, cmd := s.Update(keyRunes("x"))
	require.NotNil(t, cmd)
	assert.IsType(t, popMsg{}, cmd())
}

func TestLoginFocusCyclesBothDirections(t *testing.T) {
	s := newLoginScreen(testSession())
	require.Equal(t, 0, s.focus)

	model, _ := s.Update(tea.KeyMsg{Type: tea.KeyTab})
	s = model.(*loginScreen)
	assert.Equal(t, 1, s.focus)

	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	s = model.(*loginScreen)
	assert.Equal(t, 0, s.focus)

	// going backwards from the first field wraps to the last
	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	s = model.(*loginScreen)
	assert.Equal(t, 1, s.focus)
}

func TestLoginRequiresBothFields(t *testing.T) {
	s := newLoginScreen(testSession())
	model, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	s = model.(*loginScreen)
	assert.Nil(t, cmd)
	assert.Equal(t, "Please fill in all fields", s.errText)
}

func TestLoginFailureShowsUserMessage(t *testing.T) {
	s := newLoginScreen(testSession())
	model, _ := s.Update(loginFailMsg{err: openproject.ErrAuth})
	s = model.(*loginScreen)
	assert.False(t, s.busy)
	assert.Contains(t, s.View(), "Authentication failed")
}

func mustClient(t *testing.T) *openproject.Client {
	t.Helper()
	c, err := openproject.New("https://op.example.com", "test-key", openproject.Options{})
	require.NoError(t, err)
	return c
}

func TestProgressBarBounds(t *testing.T) {
	full := progressBar(100, 10)
	empty := progressBar(0, 10)
	assert.Equal(t, 10, strings.Count(full, "█"))
	assert.Equal(t, 10, strings.Count(empty, "░"))
	// out-of-range values clamp instead of panicking
	assert.NotPanics(t, func() { progressBar(-5, 10) })
	assert.NotPanics(t, func() { progressBar(250, 10) })
}
