package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/texture/internal"
	"github.com/starford/texture/internal/latex"
)

type pdfCompiler struct{}

func (pdfCompiler) Compile(_ context.Context, job latex.Job) error {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(latex.OutputPDF(job), []byte("%PDF"), 0o644)
}

func run(t *testing.T, target string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(
		internal.WithCompiler(pdfCompiler{}),
		internal.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	app.Writer = &out
	app.ErrWriter = io.Discard
	full := append([]string{"texture", "--config", "", "--target", target}, args...)
	err := app.Run(context.Background(), full)
	return out.String(), err
}

func TestCLI_Workflow(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "list")
	require.Error(t, err, "list before init")

	out, err := run(t, dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "texture-notes-profile")

	out, err = run(t, dir, "add", "--subject", "Calculus", "--note", "Calculus", "Limits", "Derivatives")
	require.NoError(t, err)
	assert.Contains(t, out, "add: 3 succeeded, 0 failed")
	assert.FileExists(t, filepath.Join(dir, "texture-notes-profile", "notes", "calculus", "limits.tex"))

	out, err = run(t, dir, "ls", "--sort", "title")
	require.NoError(t, err)
	assert.Contains(t, out, "Calculus")
	assert.Contains(t, out, "Derivatives")

	out, err = run(t, dir, "make", "--note", "Calculus", ":all:")
	require.NoError(t, err)
	assert.Contains(t, out, "compile: 2 succeeded, 0 failed")
	assert.FileExists(t, filepath.Join(dir, "texture-notes-profile", ".output", "calculus", "limits.pdf"))

	out, err = run(t, dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "catalog and notes agree")

	out, err = run(t, dir, "rm", "--note", "Calculus", ":all:", "--subject", "Calculs")
	require.Error(t, err)
	assert.Contains(t, out, `did you mean "Calculus"?`)
	assert.NoFileExists(t, filepath.Join(dir, "texture-notes-profile", "notes", "calculus", "limits.tex"))
}

func TestCLI_ListDefaultsToTitleOrder(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "init")
	require.NoError(t, err)
	_, err = run(t, dir, "add", "--subject", "Physics", "Calculus")
	require.NoError(t, err)

	out, err := run(t, dir, "list")
	require.NoError(t, err)
	calc, phys := strings.Index(out, "Calculus"), strings.Index(out, "Physics")
	require.True(t, calc >= 0 && phys >= 0, out)
	assert.Less(t, calc, phys)
}

func TestCLI_ValidationErrorChangesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "init")
	require.NoError(t, err)

	_, err = run(t, dir, "add", "--subject", "Good", "Bad/Name")
	require.Error(t, err)

	out, err := run(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no subjects")
}

func TestCLI_RequestParseErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "init")
	require.NoError(t, err)

	_, err = run(t, dir, "add", "Calculus")
	assert.Error(t, err)
	_, err = run(t, dir, "add", "--subject", "Calculus", "--cache")
	assert.Error(t, err)
	_, err = run(t, dir, "open", "OnlySubject")
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, "Calculus", suggest("calc", []string{"Physics", "Calculus"}))
	assert.Equal(t, "", suggest("zzz", []string{"Physics", "Calculus"}))
}
