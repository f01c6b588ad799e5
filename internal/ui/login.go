package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opterm/opterm/internal/openproject"
)

// loginScreen collects the instance URL and API key, verifies them with a
// ping, and persists them on success.
type loginScreen struct {
	session *Session
	url     textinput.Model
	apiKey  textinput.Model
	focus   int // 0 = url, 1 = key
	spin    spinner.Model
	busy    bool
	errText string
	width   int
	height  int
}

func newLoginScreen(session *Session) *loginScreen {
	url := textinput.New()
	url.Placeholder = "https://openproject.example.com"
	url.CharLimit = 256
	url.Width = 48
	url.SetValue(strings.TrimSuffix(session.Config.APIURL, openproject.APIRoot))
	url.Focus()

	apiKey := textinput.New()
	apiKey.Placeholder = "Your API key"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.CharLimit = 256
	apiKey.Width = 48
	apiKey.SetValue(session.Config.APIKey)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &loginScreen{
		session: session,
		url:     url,
		apiKey:  apiKey,
		spin:    spin,
	}
}

func (s *loginScreen) setSize(w, h int) { s.width, s.height = w, h }

func (s *loginScreen) Init() tea.Cmd {
	return textinput.Blink
}

func (s *loginScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		switch msg.String() {
		case "tab", "down":
			s.setFocus((s.focus + 1) % 2)
			return s, nil
		case "shift+tab", "up":
			s.setFocus((s.focus - 1 + 2) % 2)
			return s, nil
		case "enter":
			return s, s.submit()
		}

	case loginOKMsg:
		s.busy = false
		s.session.Client = msg.client
		s.session.Config.APIURL = msg.apiURL
		s.session.Config.APIKey = msg.apiKey
		if err := s.session.Config.Save(); err != nil {
			// Login worked; a failed save only costs the user a re-entry
			// next time.
			s.session.Logger.Warn().Err(err).Msg("saving credentials failed")
		}
		return s, replace(newProjectsScreen(s.session))

	case loginFailMsg:
		s.busy = false
		s.errText = openproject.UserMessage(msg.err)
		return s, nil

	case spinner.TickMsg:
		if !s.busy {
			return s, nil
		}
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	s.url, cmd = s.url.Update(msg)
	cmds = append(cmds, cmd)
	s.apiKey, cmd = s.apiKey.Update(msg)
	cmds = append(cmds, cmd)
	return s, tea.Batch(cmds...)
}

func (s *loginScreen) setFocus(i int) {
	s.focus = i
	if i == 0 {
		s.url.Focus()
		s.apiKey.Blur()
	} else {
		s.url.Blur()
		s.apiKey.Focus()
	}
}

func (s *loginScreen) submit() tea.Cmd {
	rawURL := strings.TrimSpace(s.url.Value())
	apiKey := strings.TrimSpace(s.apiKey.Value())
	if rawURL == "" || apiKey == "" {
		s.errText = "Please fill in all fields"
		return nil
	}
	s.errText = ""
	s.busy = true

	session := s.session
	return tea.Batch(s.spin.Tick, func() tea.Msg {
		client, err := openproject.New(rawURL, apiKey, openproject.Options{
			Timeout:  session.Config.Timeout,
			PageSize: session.Config.PageSize,
		})
		if err != nil {
			return loginFailMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), session.Config.Timeout)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			return loginFailMsg{err: err}
		}
		return loginOKMsg{client: client, apiURL: client.BaseURL(), apiKey: apiKey}
	})
}

func (s *loginScreen) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("OpenProject Login"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Instance URL"))
	b.WriteString("\n")
	b.WriteString(s.url.View())
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("API key"))
	b.WriteString("\n")
	b.WriteString(s.apiKey.View())
	b.WriteString("\n\n")

	switch {
	case s.busy:
		b.WriteString(s.spin.View() + " Testing connection...")
	case s.errText != "":
		b.WriteString(errorStyle.Render(s.errText))
	default:
		b.WriteString(helpHintStyle.Render("enter: login • tab: next field • ctrl+c: quit"))
	}

	box := boxStyle.Render(b.String())
	if s.width == 0 {
		return box
	}
	return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, box)
}
