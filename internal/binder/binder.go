// Package binder projects catalog entries onto the profile directory: one
// directory per subject and one LaTeX source per note.
package binder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/models"
	"github.com/starford/texture/internal/names"
)

// Profile layout.
const (
	ProfileDirName  = "texture-notes-profile"
	NotesDirName    = "notes"
	StylesDirName   = "styles"
	OutputDirName   = ".output"
	GraphicsDirName = "graphics"
	ConfigFileName  = "latexmkrc"
	BibFileName     = "ref.bib"
	PrefaceFileName = "README.txt"
	SourceExt       = ".tex"
)

// Options tunes the rendered note sources.
type Options struct {
	Author    string
	Templates *Templates
	Now       func() time.Time
}

// Binder owns the mapping from catalog identity to physical path.
type Binder struct {
	root   string // absolute path to the profile directory
	notes  string
	tmpl   *Templates
	author string
	now    func() time.Time
}

// Init creates the profile skeleton under root. It is safe to call on an
// existing profile; an existing latexmkrc is left untouched.
func Init(root, latexmkrc string) error {
	for _, dir := range []string{root, filepath.Join(root, NotesDirName), filepath.Join(root, StylesDirName), filepath.Join(root, OutputDirName)} {
		if err := ensureDir(dir); err != nil {
			return &apperr.IOError{Op: "init profile", Path: dir, Err: err}
		}
	}
	if latexmkrc == "" {
		latexmkrc = DefaultLatexmkrc
	}
	rc := filepath.Join(root, ConfigFileName)
	if err := createExclusive(rc, []byte(latexmkrc)); err != nil && !errors.Is(err, fs.ErrExist) {
		return &apperr.IOError{Op: "init profile", Path: rc, Err: err}
	}
	return nil
}

// New creates a Binder rooted at an existing profile directory.
func New(root string, opts Options) (*Binder, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("binder: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("binder: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("binder: root is not a directory: %s", abs)
	}
	if opts.Templates == nil {
		if opts.Templates, err = ParseTemplates("", ""); err != nil {
			return nil, err
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Binder{
		root:   abs,
		notes:  filepath.Join(abs, NotesDirName),
		tmpl:   opts.Templates,
		author: opts.Author,
		now:    opts.Now,
	}, nil
}

// Root returns the absolute profile directory.
func (b *Binder) Root() string { return b.root }

// SubjectDir returns the directory of a subject slug.
func (b *Binder) SubjectDir(slug string) (string, error) {
	if slug == "" {
		return "", errors.New("empty subject slug")
	}
	return b.safePath(filepath.Join(NotesDirName, slug))
}

// OutputDir returns the directory that receives compiled PDFs of a subject.
func (b *Binder) OutputDir(slug string) string {
	return filepath.Join(b.root, OutputDirName, slug)
}

// NoteFile returns the source file name of a note.
func NoteFile(n models.Note) string {
	return NoteStem(n) + SourceExt
}

// NoteStem returns the source file name of a note without extension. The
// stem recorded in the catalog wins; notes without one derive it from the
// title.
func NoteStem(n models.Note) string {
	switch {
	case n.Main:
		return models.MainNoteFile
	case n.Stem != "":
		return n.Stem
	}
	return names.NoteStem(n.Title)
}

// NotePath returns the absolute path of a note's source file.
func (b *Binder) NotePath(n models.Note) (string, error) {
	dir, err := b.SubjectDir(n.SubjectSlug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, NoteFile(n)), nil
}

// safePath resolves a path relative to the profile root and rejects any
// result that escapes it.
func (b *Binder) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(b.root, cleaned)
	if !strings.HasPrefix(abs, b.notes+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes notes directory: %s", rel)
	}
	return abs, nil
}

// MaterializeSubject creates the subject directory, its graphics directory,
// the link to the shared latexmkrc, an empty bibliography and the main note.
// Calling it on a correctly shaped directory is a no-op.
func (b *Binder) MaterializeSubject(s models.Subject) error {
	const op = "materialize subject"
	dir, err := b.SubjectDir(s.Slug)
	if err != nil {
		return &apperr.IOError{Op: op, Path: s.Name, Err: err}
	}
	if err := ensureDir(dir); err != nil {
		return &apperr.IOError{Op: op, Path: dir, Err: err}
	}
	graphics := filepath.Join(dir, GraphicsDirName)
	if err := ensureDir(graphics); err != nil {
		return &apperr.IOError{Op: op, Path: graphics, Err: err}
	}

	link := filepath.Join(dir, ConfigFileName)
	if err := ensureSymlink(filepath.Join("..", "..", ConfigFileName), link); err != nil {
		return &apperr.IOError{Op: op, Path: link, Err: err}
	}

	bib := filepath.Join(dir, BibFileName)
	if err := createExclusive(bib, nil); err != nil && !errors.Is(err, fs.ErrExist) {
		return &apperr.IOError{Op: op, Path: bib, Err: err}
	}

	main := filepath.Join(dir, models.MainNoteFile+SourceExt)
	if _, err := os.Lstat(main); errors.Is(err, fs.ErrNotExist) {
		content, err := b.mainSource(s.Name, dir, nil)
		if err != nil {
			return &apperr.IOError{Op: op, Path: main, Err: err}
		}
		if err := createExclusive(main, content); err != nil {
			return &apperr.IOError{Op: op, Path: main, Err: err}
		}
	}
	return nil
}

// MaterializeNote writes a note's source from the note template. An existing
// file is never overwritten; it is reported as apperr.ErrAlreadyExists.
func (b *Binder) MaterializeNote(n models.Note) error {
	const op = "materialize note"
	path, err := b.NotePath(n)
	if err != nil {
		return &apperr.IOError{Op: op, Path: n.Title, Err: err}
	}
	if _, err := os.Lstat(path); err == nil {
		return &apperr.IOError{Op: op, Path: path, Err: apperr.ErrAlreadyExists}
	}
	content, err := b.tmpl.renderNote(noteData{
		Title:   n.Title,
		Subject: n.Subject,
		Author:  b.author,
		Date:    b.date(),
	})
	if err != nil {
		return &apperr.IOError{Op: op, Path: path, Err: err}
	}
	if err := createExclusive(path, content); err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = apperr.ErrAlreadyExists
		}
		return &apperr.IOError{Op: op, Path: path, Err: err}
	}
	return nil
}

// RenderMain regenerates the main note of a subject so that it includes the
// given notes, in order.
func (b *Binder) RenderMain(s models.Subject, notes []models.Note) error {
	const op = "render main note"
	dir, err := b.SubjectDir(s.Slug)
	if err != nil {
		return &apperr.IOError{Op: op, Path: s.Name, Err: err}
	}
	content, err := b.mainSource(s.Name, dir, notes)
	if err != nil {
		return &apperr.IOError{Op: op, Path: dir, Err: err}
	}
	path := filepath.Join(dir, models.MainNoteFile+SourceExt)
	if err := writeAtomic(path, content); err != nil {
		return &apperr.IOError{Op: op, Path: path, Err: err}
	}
	return nil
}

// RemoveSubjectTree deletes a subject directory recursively. A missing
// directory is reported with an error wrapping fs.ErrNotExist.
func (b *Binder) RemoveSubjectTree(s models.Subject) error {
	const op = "remove subject"
	dir, err := b.SubjectDir(s.Slug)
	if err != nil {
		return &apperr.IOError{Op: op, Path: s.Name, Err: err}
	}
	if _, err := os.Lstat(dir); err != nil {
		return &apperr.IOError{Op: op, Path: dir, Err: err}
	}
	if err := os.RemoveAll(dir); err != nil {
		return &apperr.IOError{Op: op, Path: dir, Err: err}
	}
	return nil
}

// RemoveNoteFile deletes a single note source. A missing file is reported
// with an error wrapping fs.ErrNotExist.
func (b *Binder) RemoveNoteFile(n models.Note) error {
	const op = "remove note"
	path, err := b.NotePath(n)
	if err != nil {
		return &apperr.IOError{Op: op, Path: n.Title, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &apperr.IOError{Op: op, Path: path, Err: err}
	}
	return nil
}

// SubjectExists reports whether the subject directory exists.
func (b *Binder) SubjectExists(s models.Subject) bool {
	dir, err := b.SubjectDir(s.Slug)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// NoteExists reports whether the note's source file exists.
func (b *Binder) NoteExists(n models.Note) bool {
	path, err := b.NotePath(n)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SubjectDirs returns the names of every directory under notes/.
func (b *Binder) SubjectDirs() ([]string, error) {
	entries, err := os.ReadDir(b.notes)
	if err != nil {
		return nil, &apperr.IOError{Op: "list subjects", Path: b.notes, Err: err}
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (b *Binder) mainSource(subject, dir string, notes []models.Note) ([]byte, error) {
	data := mainData{
		Title:  subject,
		Author: b.author,
		Date:   b.date(),
	}
	preface, err := os.ReadFile(filepath.Join(dir, PrefaceFileName))
	if err == nil {
		data.Preface = strings.TrimSpace(strings.ReplaceAll(string(preface), "${__subject__}", subject))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, n := range notes {
		if n.Main {
			continue
		}
		data.Notes = append(data.Notes, mainEntry{Title: n.Title, File: NoteStem(n)})
	}
	return b.tmpl.renderMain(data)
}

func (b *Binder) date() string {
	return b.now().Format("January 02, 2006")
}
