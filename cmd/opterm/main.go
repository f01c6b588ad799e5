// Command opterm is a terminal client for OpenProject. It talks to the
// API v3 of one instance, keeps a local snapshot cache for offline
// browsing, and runs a full-screen interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opterm/opterm/internal/config"
	"github.com/opterm/opterm/internal/log"
	"github.com/opterm/opterm/internal/store"
	"github.com/opterm/opterm/internal/ui"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "opterm:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "config file path (default: user config dir)")
		logLevel    = flag.String("log-level", "", "log level: debug, info, warn, error")
		logFile     = flag.String("log-file", "", "log file path (default: user cache dir)")
		offline     = flag.Bool("offline", false, "browse cached data without connecting")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("opterm", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.Offline = *offline
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	// The interface owns the terminal, so logs go to a file.
	logOut, err := log.FileWriter(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logOut.Close()
	log.Configure(log.Config{Level: cfg.LogLevel, Output: logOut, Service: "opterm"})
	logger := log.Base()
	logger.Info().Str("version", version).Bool("offline", cfg.Offline).Msg("starting")

	// A broken cache only costs offline browsing, never startup.
	var st *store.Store
	st, err = store.Open(filepath.Join(cfg.CacheDir, "snapshots"))
	if err != nil {
		logger.Warn().Err(err).Msg("snapshot store unavailable, continuing without cache")
		st = nil
	} else {
		defer st.Close()
	}

	session := ui.NewSession(cfg, st)
	program := tea.NewProgram(ui.New(session), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		err := config.Watch(ctx, cfg.Path, func(fresh *config.Config) {
			program.Send(ui.ConfigReloaded(fresh))
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run interface: %w", err)
	}
	logger.Info().Msg("shutting down")
	return nil
}
