// Package latex runs the external typesetting toolchain for a single note
// source and collects its output.
package latex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/starford/texture/internal/apperr"
)

// Engines accepted by Latexmk, mapped to the latexmk flag that selects them.
var engineFlags = map[string]string{
	"pdflatex": "-pdf",
	"lualatex": "-pdflua",
	"xelatex":  "-pdfxe",
}

// Engines returns the supported engine names.
func Engines() []string {
	return []string{"pdflatex", "lualatex", "xelatex"}
}

// Job is one source file to typeset.
type Job struct {
	Dir       string // directory the builder runs in
	File      string // source file name, relative to Dir
	OutputDir string // receives the PDF, or the log on failure
}

// Stem returns the source file name without extension.
func (j Job) Stem() string {
	return strings.TrimSuffix(j.File, filepath.Ext(j.File))
}

// Compiler typesets a job. Implementations must be safe for concurrent use.
type Compiler interface {
	Compile(ctx context.Context, job Job) error
}

// Latexmk runs latexmk for each job.
type Latexmk struct {
	Builder     string // executable, usually "latexmk"
	Engine      string
	ShellEscape bool
	SyncTeX     bool
	Logger      *slog.Logger
}

var _ Compiler = (*Latexmk)(nil)

// Args returns the latexmk arguments used to build file.
func (l *Latexmk) Args(file string) []string {
	flag, ok := engineFlags[l.Engine]
	if !ok {
		flag = "-pdf"
	}
	args := []string{flag, "-interaction=nonstopmode", "-halt-on-error"}
	if l.ShellEscape {
		args = append(args, "-shell-escape")
	}
	if l.SyncTeX {
		args = append(args, "-synctex=1")
	}
	return append(args, file)
}

// Compile builds the job, cleans auxiliary files and copies the PDF to the
// output directory. On failure the build log is copied instead and the
// returned error wraps apperr.ErrCompileFailed.
func (l *Latexmk) Compile(ctx context.Context, job Job) error {
	builder := l.Builder
	if builder == "" {
		builder = "latexmk"
	}
	if _, err := exec.LookPath(builder); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrNoCollaborator, builder)
	}
	logger := l.logger().With(slog.String("file", filepath.Join(job.Dir, job.File)))

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return &apperr.IOError{Op: "create output dir", Path: job.OutputDir, Err: err}
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, builder, l.Args(job.File)...)
	cmd.Dir = job.Dir
	cmd.Stdout = &out
	cmd.Stderr = &out
	logger.Debug("latex: compiling", slog.String("builder", builder))
	runErr := cmd.Run()

	clean := exec.CommandContext(ctx, builder, "-c", job.File)
	clean.Dir = job.Dir
	if err := clean.Run(); err != nil {
		logger.Warn("latex: cleanup failed", slog.String("error", err.Error()))
	}

	pdf := job.Stem() + ".pdf"
	log := job.Stem() + ".log"
	if runErr != nil {
		// A failed build leaves no PDF from an earlier run behind.
		_ = os.Remove(filepath.Join(job.OutputDir, pdf))
		if err := copyFile(filepath.Join(job.Dir, log), filepath.Join(job.OutputDir, log)); err != nil {
			logger.Warn("latex: copy log failed", slog.String("error", err.Error()))
		}
		return fmt.Errorf("%w: %s: %v%s", apperr.ErrCompileFailed, job.File, runErr, tail(out.String(), 5))
	}

	_ = os.Remove(filepath.Join(job.OutputDir, log))
	if err := copyFile(filepath.Join(job.Dir, pdf), filepath.Join(job.OutputDir, pdf)); err != nil {
		return &apperr.IOError{Op: "copy pdf", Path: pdf, Err: err}
	}
	logger.Info("latex: compiled", slog.String("output", filepath.Join(job.OutputDir, pdf)))
	return nil
}

func (l *Latexmk) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// OutputPDF returns where a successful build of job leaves its PDF.
func OutputPDF(job Job) string {
	return filepath.Join(job.OutputDir, job.Stem()+".pdf")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// tail returns the last n non-empty lines of s, prefixed with a newline.
func tail(s string, n int) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return "\n" + strings.Join(lines, "\n")
}

// IsCompileError reports whether err is a typesetting failure rather than a
// missing toolchain or a filesystem problem.
func IsCompileError(err error) bool {
	return errors.Is(err, apperr.ErrCompileFailed)
}
