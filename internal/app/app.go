package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/five82/termstack/internal/cache"
	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/prefs"
	"github.com/five82/termstack/internal/provider"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/state"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/ui"
)

// Options configure the termstack application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/termstack/prefs.toml
	LogFile    string // empty uses DefaultLogPath
	Verbose    bool
	// Validate checks the configuration and returns without starting the UI.
	Validate bool
	// Out receives the validate report; nil means stdout.
	Out io.Writer
}

// Run loads the configuration and runs the dashboard until the user quits or
// the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if opts.Validate {
		return report(opts.Out, cfg)
	}

	logPath := opts.LogFile
	if strings.TrimSpace(logPath) == "" {
		logPath = DefaultLogPath()
	}
	logger, closeLog, err := NewLogger(logPath, opts.Verbose)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closeLog()

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "warning", w)
	}
	logger.Info("starting", "config", cfg.Path, "app", cfg.App.Name, "pages", len(cfg.Pages))

	prefsPath := opts.PrefsPath
	if strings.TrimSpace(prefsPath) == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs := prefs.Load(prefsPath)

	engine := template.New()
	resolver := scope.New(engine, cfg.Globals, scope.WithLogger(logger))
	c := cache.New(nil)
	pipeline := provider.New(engine, c,
		provider.WithLogger(logger),
		provider.WithDefaultTTL(cfg.App.CacheTTL),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	StartJanitor(ctx, c, janitorInterval(cfg.App.CacheTTL), logger)

	err = ui.Run(ui.Options{
		Context:   ctx,
		Config:    cfg,
		Engine:    engine,
		Resolver:  resolver,
		Pipeline:  pipeline,
		Store:     &state.Store{},
		Logger:    logger,
		Prefs:     userPrefs,
		PrefsPath: prefsPath,
		LogFile:   logPath,
	})
	if err != nil {
		logger.Error("ui exited", "error", err)
		return err
	}
	logger.Info("stopped")
	return nil
}

// report prints the result of validating cfg.
func report(out io.Writer, cfg *config.Config) error {
	if out == nil {
		out = os.Stdout
	}
	for _, w := range cfg.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	fmt.Fprintf(out, "%s: %d pages, start page %q\n", cfg.Path, len(cfg.Pages), cfg.Start)
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/termstack/termstack.log, falling
// back to ~/.local/state.
func DefaultLogPath() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "termstack", "termstack.log")
	}
	return config.ExpandPath("~/.local/state/termstack/termstack.log")
}

// NewLogger opens path for appending and returns a text logger writing to
// it. Without verbose only warnings and errors are written.
func NewLogger(path string, verbose bool) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

// janitorInterval derives the purge cadence from the cache TTL.
func janitorInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultJanitorInterval
	}
	return min(max(ttl, minJanitorInterval), defaultJanitorInterval)
}
