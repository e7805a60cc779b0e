// Package manager coordinates the catalog, the binder on disk and the
// external collaborators for every user operation.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/binder"
	"github.com/starford/texture/internal/catalog"
	"github.com/starford/texture/internal/editor"
	"github.com/starford/texture/internal/latex"
	"github.com/starford/texture/internal/models"
	"github.com/starford/texture/internal/names"
)

// EditorFunc launches an editor command template on path.
type EditorFunc func(ctx context.Context, template, path string, s editor.Streams) error

// Options tunes a Manager.
type Options struct {
	Jobs       int    // concurrent compiler processes, at least 1
	Editor     string // default editor command template
	Logger     *slog.Logger
	OpenEditor EditorFunc
}

// Manager executes requests against a catalog and a binder.
type Manager struct {
	catalog  catalog.Catalog
	binder   *binder.Binder
	compiler latex.Compiler
	jobs     int
	editor   string
	open     EditorFunc
	logger   *slog.Logger
}

// New creates a Manager.
func New(cat catalog.Catalog, b *binder.Binder, c latex.Compiler, opts Options) *Manager {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OpenEditor == nil {
		opts.OpenEditor = editor.Open
	}
	return &Manager{
		catalog:  cat,
		binder:   b,
		compiler: c,
		jobs:     opts.Jobs,
		editor:   opts.Editor,
		open:     opts.OpenEditor,
		logger:   opts.Logger,
	}
}

// Execute validates req and dispatches it by kind. A validation failure is
// returned as the error with a nil report; nothing has been changed then.
func (m *Manager) Execute(ctx context.Context, req Request) (*Report, error) {
	switch req.Kind {
	case KindAdd:
		return m.Add(ctx, req)
	case KindRemove:
		return m.Remove(ctx, req)
	case KindCompile:
		return m.Compile(ctx, req)
	}
	return nil, fmt.Errorf("manager: unknown request kind %v", req.Kind)
}

// Add creates the requested subjects and notes. Existing subjects are left
// as they are; subjects named only by a note group are created implicitly.
func (m *Manager) Add(_ context.Context, req Request) (*Report, error) {
	req.Kind = KindAdd
	if err := req.Validate(); err != nil {
		return nil, err
	}
	report := &Report{Kind: KindAdd}

	known := make(map[string]models.Subject)
	for _, name := range req.Subjects {
		if subj, ok := m.ensureSubject(report, name); ok {
			known[name] = subj
		}
	}
	for _, g := range req.Notes {
		subj, ok := known[g.Subject]
		if !ok {
			if subj, ok = m.ensureSubject(report, g.Subject); !ok {
				continue
			}
			known[g.Subject] = subj
		}
		for _, title := range g.Titles {
			m.addNote(report, subj, title)
		}
	}
	return report, nil
}

// ensureSubject returns the subject, creating it when absent. Every call
// records one outcome.
func (m *Manager) ensureSubject(report *Report, name string) (models.Subject, bool) {
	subj, err := m.catalog.GetSubject(name)
	if err == nil {
		report.add(Outcome{Op: OpAddSubject, Subject: name, Detail: "exists"})
		return subj, true
	}
	if !errors.Is(err, apperr.ErrUnknownSubject) {
		report.fail(OpAddSubject, name, "", err)
		return models.Subject{}, false
	}

	subj, err = m.catalog.CreateSubject(name)
	if err != nil {
		report.fail(OpAddSubject, name, "", err)
		return models.Subject{}, false
	}
	if err := m.binder.MaterializeSubject(subj); err != nil {
		m.compensateSubject(name)
		report.fail(OpAddSubject, name, "", err)
		return models.Subject{}, false
	}
	m.logger.Info("manager: subject created", slog.String("subject", name), slog.String("slug", subj.Slug))
	report.add(Outcome{Op: OpAddSubject, Subject: name, Detail: "created"})
	return subj, true
}

func (m *Manager) addNote(report *Report, subj models.Subject, title string) {
	note, err := m.catalog.CreateNote(subj.Name, title)
	if err != nil {
		report.fail(OpAddNote, subj.Name, title, err)
		return
	}
	if err := m.binder.MaterializeNote(note); err != nil {
		if delErr := m.catalog.DeleteNote(subj.Name, title); delErr != nil {
			m.logger.Error("manager: compensate note failed",
				slog.String("subject", subj.Name), slog.String("note", title), slog.String("error", delErr.Error()))
		}
		report.fail(OpAddNote, subj.Name, title, err)
		return
	}
	m.logger.Info("manager: note created", slog.String("subject", subj.Name), slog.String("note", title))
	report.add(Outcome{Op: OpAddNote, Subject: subj.Name, Note: title, Detail: binder.NoteFile(note)})
}

func (m *Manager) compensateSubject(name string) {
	if err := m.catalog.DeleteSubject(name); err != nil {
		m.logger.Error("manager: compensate subject failed",
			slog.String("subject", name), slog.String("error", err.Error()))
	}
}

// Remove deletes the requested subjects and notes. The filesystem goes
// first; the catalog record is only deleted once its files are gone.
func (m *Manager) Remove(_ context.Context, req Request) (*Report, error) {
	req.Kind = KindRemove
	if err := req.Validate(); err != nil {
		return nil, err
	}
	report := &Report{Kind: KindRemove}

	for _, name := range req.Subjects {
		for _, subj := range m.resolveSubjects(report, OpRemoveSubject, name) {
			m.removeSubject(report, subj)
		}
	}
	for _, g := range req.Notes {
		op := OpResolveSubject
		if len(g.Titles) == 0 {
			op = OpRemoveSubject
		}
		for _, subj := range m.resolveSubjects(report, op, g.Subject) {
			if len(g.Titles) == 0 {
				m.removeSubject(report, subj)
				continue
			}
			for _, title := range g.Titles {
				notes, err := m.catalog.ListNotes(subj.Name, title)
				if err != nil {
					report.fail(OpRemoveNote, subj.Name, title, err)
					continue
				}
				for _, n := range notes {
					m.removeNote(report, n)
				}
			}
		}
	}
	return report, nil
}

func (m *Manager) removeSubject(report *Report, subj models.Subject) {
	if err := m.binder.RemoveSubjectTree(subj); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			report.fail(OpRemoveSubject, subj.Name, "", err)
			return
		}
		m.logger.Warn("manager: subject directory already missing", slog.String("subject", subj.Name))
	}
	if err := m.catalog.DeleteSubject(subj.Name); err != nil {
		report.fail(OpRemoveSubject, subj.Name, "", err)
		return
	}
	m.logger.Info("manager: subject removed", slog.String("subject", subj.Name))
	report.add(Outcome{Op: OpRemoveSubject, Subject: subj.Name, Detail: "removed"})
}

func (m *Manager) removeNote(report *Report, n models.Note) {
	if n.Main {
		report.fail(OpRemoveNote, n.Subject, n.Title, apperr.ErrMainNote)
		return
	}
	if err := m.binder.RemoveNoteFile(n); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			report.fail(OpRemoveNote, n.Subject, n.Title, err)
			return
		}
		m.logger.Warn("manager: note file already missing",
			slog.String("subject", n.Subject), slog.String("note", n.Title))
	}
	if err := m.catalog.DeleteNote(n.Subject, n.Title); err != nil {
		report.fail(OpRemoveNote, n.Subject, n.Title, err)
		return
	}
	m.logger.Info("manager: note removed", slog.String("subject", n.Subject), slog.String("note", n.Title))
	report.add(Outcome{Op: OpRemoveNote, Subject: n.Subject, Note: n.Title, Detail: "removed"})
}

// resolveSubjects expands a subject position: :all: yields every subject in
// creation order, anything else the named subject. Lookup failures are
// recorded under op.
func (m *Manager) resolveSubjects(report *Report, op, name string) []models.Subject {
	if names.IsAll(name) {
		subjects, err := m.catalog.ListSubjects(catalog.SortID)
		if err != nil {
			report.fail(op, name, "", err)
			return nil
		}
		return subjects
	}
	subj, err := m.catalog.GetSubject(name)
	if err != nil {
		report.fail(op, name, "", err)
		return nil
	}
	return []models.Subject{subj}
}
