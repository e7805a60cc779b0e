package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/texture/internal/binder"
	"github.com/starford/texture/internal/latex"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Profile  ProfileConfig     `yaml:"profile"`
	Latex    LatexConfig       `yaml:"latex"`
	Editor   EditorConfig      `yaml:"editor"`
	Document DocumentConfig    `yaml:"document"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Profile.Validate(); err != nil {
		return err
	}
	if err := c.Latex.Validate(); err != nil {
		return err
	}
	return c.Document.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// ProfileConfig locates the profile. Path is the directory that contains
// (or will contain) the texture-notes-profile directory.
type ProfileConfig struct {
	Path string `yaml:"path"`
}

// Root returns the profile directory itself.
func (c *ProfileConfig) Root() string {
	return filepath.Join(c.Path, binder.ProfileDirName)
}

// CatalogPath returns the SQLite catalog file inside the profile.
func (c *ProfileConfig) CatalogPath() string {
	return filepath.Join(c.Root(), binder.NotesDirName, "notes.db")
}

// Validate validates the profile configuration.
func (c *ProfileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LatexConfig configures the typesetting toolchain.
type LatexConfig struct {
	Builder     string `yaml:"builder"`
	Engine      string `yaml:"engine"`
	ShellEscape bool   `yaml:"shell_escape"`
	SyncTeX     bool   `yaml:"synctex"`
	Jobs        int    `yaml:"jobs"`
}

// Validate validates the LaTeX configuration.
func (c *LatexConfig) Validate() error {
	engines := make([]any, 0, len(latex.Engines()))
	for _, e := range latex.Engines() {
		engines = append(engines, e)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Builder, validation.Required),
		validation.Field(&c.Engine, validation.Required, validation.In(engines...)),
		validation.Field(&c.Jobs, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// EditorConfig holds the command used to open notes. {note} is replaced by
// the note's path.
type EditorConfig struct {
	Command string `yaml:"command"`
}

// DocumentConfig customizes generated sources. Template fields are file
// paths; empty means the built-in template.
type DocumentConfig struct {
	Author       string `yaml:"author"`
	NoteTemplate string `yaml:"note_template"`
	MainTemplate string `yaml:"main_template"`
	Latexmkrc    string `yaml:"latexmkrc"`
}

// Validate validates the document configuration.
func (c *DocumentConfig) Validate() error {
	for _, p := range []string{c.NoteTemplate, c.MainTemplate, c.Latexmkrc} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("document: %w", err)
		}
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	author := os.Getenv("USER")
	if author == "" {
		author = "Anonymous"
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelWarn,
			LogFormat: LogFormatText,
		},
		Profile: ProfileConfig{
			Path: ".",
		},
		Latex: LatexConfig{
			Builder:     "latexmk",
			Engine:      "pdflatex",
			ShellEscape: true,
			Jobs:        1,
		},
		Editor: EditorConfig{
			Command: "code {note}",
		},
		Document: DocumentConfig{
			Author: author,
		},
	}
}
