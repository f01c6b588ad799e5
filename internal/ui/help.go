package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// helpScreen is a static key reference overlayed on top of the stack.
type helpScreen struct {
	session *Session
	width   int
	height  int
}

func newHelpScreen(session *Session) *helpScreen {
	return &helpScreen{session: session}
}

func (s *helpScreen) setSize(w, h int) { s.width, s.height = w, h }

func (s *helpScreen) Init() tea.Cmd { return nil }

func (s *helpScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return s, pop()
	}
	return s, nil
}

func (s *helpScreen) View() string {
	sections := []struct {
		title string
		keys  [][2]string
	}{
		{"Navigation", [][2]string{
			{"enter", "open selection"},
			{"esc", "back"},
			{"↑/↓, j/k", "move cursor"},
			{"q", "back / quit"},
			{"ctrl+c", "quit"},
		}},
		{"Lists", [][2]string{
			{"r", "refresh"},
			{"/", "search, esc clears"},
		}},
		{"Work packages", [][2]string{
			{"n", "new work package"},
			{"e", "edit"},
			{"d", "delete (asks y/n)"},
		}},
		{"Forms", [][2]string{
			{"tab / shift+tab", "next / previous field"},
			{"←/→", "change selection"},
			{"ctrl+s", "save"},
			{"esc", "cancel"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Keyboard Reference"))
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(sec.title))
		b.WriteString("\n")
		for _, k := range sec.keys {
			b.WriteString("  ")
			b.WriteString(lipgloss.NewStyle().Bold(true).Width(18).Render(k[0]))
			b.WriteString(dimStyle.Render(k[1]))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(helpHintStyle.Render("press any key to close"))

	box := boxStyle.Render(b.String())
	if s.width == 0 {
		return box
	}
	return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, box)
}
