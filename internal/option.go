package internal

import (
	"log/slog"

	"github.com/starford/texture/internal/latex"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config        *Config
	logger        *slog.Logger
	compiler      latex.Compiler
	createProfile bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithCompiler replaces the latexmk compiler.
func WithCompiler(c latex.Compiler) Option {
	return func(a *application) {
		a.compiler = c
	}
}

// WithCreateProfile creates the profile when it does not exist yet.
func WithCreateProfile() Option {
	return func(a *application) {
		a.createProfile = true
	}
}
