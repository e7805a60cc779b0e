// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/starford/texture/internal/binder"
	"github.com/starford/texture/internal/catalog"
	"github.com/starford/texture/internal/latex"
	"github.com/starford/texture/internal/manager"
)

// App is an opened profile ready to serve requests.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Manager *manager.Manager
	Root    string

	store *catalog.Store
}

// Close releases the catalog.
func (a *App) Close() error {
	return a.store.Close()
}

// NewLogger builds the structured logger described by cfg, writing to stderr.
func NewLogger(cfg ApplicationConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Open opens the profile named by the configuration and wires the catalog,
// the binder, the compiler and the coordinator.
func Open(_ context.Context, opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App)
	}
	slog.SetDefault(logger)

	root := cfg.Profile.Root()
	logger.Debug("Configuration loaded",
		slog.String("profile", root),
		slog.String("engine", cfg.Latex.Engine),
		slog.Int("jobs", cfg.Latex.Jobs),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if app.createProfile {
		rc, err := readOptional(cfg.Document.Latexmkrc)
		if err != nil {
			return nil, fmt.Errorf("read latexmkrc: %w", err)
		}
		if err := binder.Init(root, rc); err != nil {
			return nil, fmt.Errorf("init profile: %w", err)
		}
		logger.Info("Profile ready", slog.String("profile", root))
	} else if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no profile at %s, run init first", root)
	}

	noteTmpl, err := readOptional(cfg.Document.NoteTemplate)
	if err != nil {
		return nil, fmt.Errorf("read note template: %w", err)
	}
	mainTmpl, err := readOptional(cfg.Document.MainTemplate)
	if err != nil {
		return nil, fmt.Errorf("read main template: %w", err)
	}
	tmpl, err := binder.ParseTemplates(noteTmpl, mainTmpl)
	if err != nil {
		return nil, err
	}

	b, err := binder.New(root, binder.Options{Author: cfg.Document.Author, Templates: tmpl})
	if err != nil {
		return nil, fmt.Errorf("init binder: %w", err)
	}

	store, err := catalog.Open(cfg.Profile.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	compiler := app.compiler
	if compiler == nil {
		compiler = &latex.Latexmk{
			Builder:     cfg.Latex.Builder,
			Engine:      cfg.Latex.Engine,
			ShellEscape: cfg.Latex.ShellEscape,
			SyncTeX:     cfg.Latex.SyncTeX,
			Logger:      logger,
		}
	}

	mgr := manager.New(store, b, compiler, manager.Options{
		Jobs:   cfg.Latex.Jobs,
		Editor: cfg.Editor.Command,
		Logger: logger,
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Manager: mgr,
		Root:    b.Root(),
		store:   store,
	}, nil
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
