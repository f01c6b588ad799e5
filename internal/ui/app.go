// Package ui implements the interactive terminal interface. A root model
// owns a stack of screens (login, projects, work packages, details, form,
// help) and the shared session they all use.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/opterm/opterm/internal/config"
	"github.com/opterm/opterm/internal/log"
	"github.com/opterm/opterm/internal/openproject"
	"github.com/opterm/opterm/internal/store"
)

// Session is the state every screen shares: configuration, the API client
// (nil until login succeeds), and the snapshot store (nil when the cache
// could not be opened).
type Session struct {
	Config  *config.Config
	Client  *openproject.Client
	Store   *store.Store
	Offline bool
	Logger  zerolog.Logger
}

// NewSession builds a session from the loaded configuration, connecting
// the client when credentials are present.
func NewSession(cfg *config.Config, st *store.Store) *Session {
	s := &Session{
		Config:  cfg,
		Store:   st,
		Offline: cfg.Offline,
		Logger:  log.WithComponent("ui"),
	}
	if cfg.Configured() {
		if err := s.Connect(); err != nil {
			s.Logger.Warn().Err(err).Msg("client setup from config failed, falling back to login")
		}
	}
	return s
}

// Connect (re)builds the API client from the current configuration.
func (s *Session) Connect() error {
	client, err := openproject.New(s.Config.APIURL, s.Config.APIKey, openproject.Options{
		Timeout:  s.Config.Timeout,
		PageSize: s.Config.PageSize,
	})
	if err != nil {
		return err
	}
	s.Client = client
	return nil
}

// screen is a tea.Model that can be laid out by the root.
type screen interface {
	tea.Model
	setSize(width, height int)
}

// App is the root model. It owns the screen stack and routes messages to
// the top screen.
type App struct {
	session *Session
	stack   []screen
	width   int
	height  int
}

// New assembles the application. The first screen is login when no usable
// credentials exist, the project list otherwise.
func New(session *Session) *App {
	app := &App{session: session}
	if session.Client != nil || session.Offline {
		app.stack = []screen{newProjectsScreen(session)}
	} else {
		app.stack = []screen{newLoginScreen(session)}
	}
	return app
}

func (a *App) top() screen {
	return a.stack[len(a.stack)-1]
}

func (a *App) Init() tea.Cmd {
	return a.top().Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		for _, s := range a.stack {
			s.setSize(msg.Width, msg.Height)
		}
		return a, nil

	case pushMsg:
		a.stack = append(a.stack, msg.screen)
		msg.screen.setSize(a.width, a.height)
		a.session.Logger.Debug().Str(log.FieldScreen, screenName(msg.screen)).Msg("screen pushed")
		return a, msg.screen.Init()

	case popMsg:
		if len(a.stack) <= 1 {
			return a, tea.Quit
		}
		a.stack = a.stack[:len(a.stack)-1]
		a.session.Logger.Debug().Str(log.FieldScreen, screenName(a.top())).Msg("screen revealed")
		return a, nil

	case replaceMsg:
		a.stack[len(a.stack)-1] = msg.screen
		msg.screen.setSize(a.width, a.height)
		return a, msg.screen.Init()

	case configReloadedMsg:
		return a, a.applyConfig(msg.cfg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	}

	updated, cmd := a.top().Update(msg)
	if s, ok := updated.(screen); ok {
		a.stack[len(a.stack)-1] = s
	}
	return a, cmd
}

func (a *App) View() string {
	return a.top().View()
}

// applyConfig swaps in an externally reloaded configuration (the config
// file watcher feeds these in). The client is rebuilt so new credentials
// or timeouts take effect; screens pick it up through the shared session.
func (a *App) applyConfig(cfg *config.Config) tea.Cmd {
	cfg.Offline = a.session.Offline
	a.session.Config = cfg
	if !cfg.Configured() {
		return nil
	}
	if err := a.session.Connect(); err != nil {
		a.session.Logger.Warn().Err(err).Msg("reloaded config produced no usable client")
		return nil
	}
	a.session.Logger.Info().Str(log.FieldBaseURL, a.session.Client.BaseURL()).Msg("client rebuilt from reloaded config")
	return nil
}

// ConfigReloaded wraps a fresh config for delivery via Program.Send.
func ConfigReloaded(cfg *config.Config) tea.Msg {
	return configReloadedMsg{cfg: cfg}
}

func screenName(s screen) string {
	switch s.(type) {
	case *loginScreen:
		return "login"
	case *projectsScreen:
		return "projects"
	case *workPackagesScreen:
		return "workpackages"
	case *detailsScreen:
		return "details"
	case *formScreen:
		return "form"
	case *helpScreen:
		return "help"
	default:
		return "unknown"
	}
}
