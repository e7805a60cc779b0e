package manager

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/binder"
	"github.com/starford/texture/internal/catalog"
	"github.com/starford/texture/internal/checksum"
	"github.com/starford/texture/internal/latex"
	"github.com/starford/texture/internal/models"
	"github.com/starford/texture/internal/watcher"
)

// target is one note source to typeset.
type target struct {
	subject models.Subject
	note    models.Note
	path    string
	job     latex.Job
}

// compileResult is filled in by a compile worker.
type compileResult struct {
	sum     string
	pages   int
	skipped bool
	err     error
}

// Compile typesets the requested notes. Subjects, and note groups without
// titles, compile the subject's main note after regenerating it; titles and
// :all: compile individual notes. Each source is compiled at most once and a
// failure never stops the rest of the batch.
func (m *Manager) Compile(ctx context.Context, req Request) (*Report, error) {
	req.Kind = KindCompile
	if err := req.Validate(); err != nil {
		return nil, err
	}
	report := &Report{Kind: KindCompile}
	targets := m.resolveTargets(report, req)
	m.compile(ctx, report, targets, req.Cache)
	return report, nil
}

// resolveTargets turns the request into a de-duplicated list of compile
// targets. Main notes are regenerated as they are resolved.
func (m *Manager) resolveTargets(report *Report, req Request) []target {
	var targets []target
	seen := make(map[int64]bool)
	rendered := make(map[int64]bool)

	push := func(subj models.Subject, n models.Note) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		if n.Main && !rendered[subj.ID] {
			rendered[subj.ID] = true
			children, err := m.catalog.ListNotes(subj.Name, models.AllSelector)
			if err == nil {
				err = m.binder.RenderMain(subj, children)
			}
			if err != nil {
				report.fail(OpCompile, subj.Name, n.Title, err)
				return
			}
		}
		t, err := m.target(subj, n)
		if err != nil {
			report.fail(OpCompile, subj.Name, n.Title, err)
			return
		}
		targets = append(targets, t)
	}
	pushMain := func(subj models.Subject) {
		n, err := m.catalog.MainNote(subj.Name)
		if err != nil {
			report.fail(OpResolveNote, subj.Name, models.MainNoteTitle, err)
			return
		}
		push(subj, n)
	}

	for _, name := range req.Subjects {
		for _, subj := range m.resolveSubjects(report, OpResolveSubject, name) {
			pushMain(subj)
		}
	}
	for _, g := range req.Notes {
		for _, subj := range m.resolveSubjects(report, OpResolveSubject, g.Subject) {
			if len(g.Titles) == 0 {
				pushMain(subj)
				continue
			}
			for _, title := range g.Titles {
				notes, err := m.catalog.ListNotes(subj.Name, title)
				if err != nil {
					report.fail(OpResolveNote, subj.Name, title, err)
					continue
				}
				for _, n := range notes {
					push(subj, n)
				}
			}
		}
	}
	return targets
}

func (m *Manager) target(subj models.Subject, n models.Note) (target, error) {
	dir, err := m.binder.SubjectDir(subj.Slug)
	if err != nil {
		return target{}, err
	}
	file := binder.NoteFile(n)
	return target{
		subject: subj,
		note:    n,
		path:    filepath.Join(dir, file),
		job: latex.Job{
			Dir:       dir,
			File:      file,
			OutputDir: m.binder.OutputDir(subj.Slug),
		},
	}, nil
}

// compile runs the targets through the compiler with at most m.jobs
// processes and records one outcome per target, in target order. Catalog
// bookkeeping happens after every process has finished.
func (m *Manager) compile(ctx context.Context, report *Report, targets []target, cache bool) {
	results := make([]compileResult, len(targets))

	var g errgroup.Group
	g.SetLimit(m.jobs)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = m.compileOne(ctx, t, cache)
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range targets {
		res := results[i]
		o := Outcome{Op: OpCompile, Subject: t.subject.Name, Note: t.note.Title, Skipped: res.skipped, Err: res.err}
		switch {
		case res.err != nil:
			m.logger.Warn("manager: compile failed",
				slog.String("subject", t.subject.Name), slog.String("note", t.note.Title), slog.String("error", res.err.Error()))
		case res.skipped:
			o.Detail = "cached"
		default:
			o.Detail = latex.OutputPDF(t.job)
			o.Pages = res.pages
			if cache && res.sum != "" {
				if err := m.catalog.MarkCompiled(t.note.ID, res.sum); err != nil {
					m.logger.Warn("manager: record checksum failed",
						slog.String("note", t.note.Title), slog.String("error", err.Error()))
				}
			}
		}
		report.add(o)
	}
}

func (m *Manager) compileOne(ctx context.Context, t target, cache bool) compileResult {
	if err := ctx.Err(); err != nil {
		return compileResult{err: err}
	}
	if _, err := os.Stat(t.path); err != nil {
		return compileResult{err: &apperr.IOError{Op: "compile", Path: t.path, Err: apperr.ErrDangling}}
	}

	var sum string
	if cache {
		var err error
		if sum, err = checksum.File(t.path); err != nil {
			return compileResult{err: &apperr.IOError{Op: "checksum", Path: t.path, Err: err}}
		}
		if sum == t.note.CompiledChecksum {
			if _, err := os.Stat(latex.OutputPDF(t.job)); err == nil {
				m.logger.Debug("manager: compile skipped", slog.String("file", t.path))
				return compileResult{sum: sum, skipped: true}
			}
		}
	}

	m.logger.Info("manager: compiling", slog.String("subject", t.subject.Name), slog.String("note", t.note.Title))
	if err := m.compiler.Compile(ctx, t.job); err != nil {
		return compileResult{err: err}
	}
	pages, err := latex.PageCount(latex.OutputPDF(t.job))
	if err != nil {
		m.logger.Debug("manager: page count unavailable", slog.String("error", err.Error()))
	}
	return compileResult{sum: sum, pages: pages}
}

// Watch compiles the request once and then recompiles a target whenever
// one of its sources changes, until ctx is cancelled. A main note is
// recompiled when it or any note of its subject changes. Every pass is
// handed to notify.
func (m *Manager) Watch(ctx context.Context, req Request, notify func(*Report)) error {
	first, err := m.Compile(ctx, req)
	if err != nil {
		return err
	}
	notify(first)

	targets := m.resolveTargets(&Report{}, req)
	byPath := make(map[string][]target)
	for _, t := range targets {
		byPath[t.path] = append(byPath[t.path], t)
		if !t.note.Main {
			continue
		}
		children, err := m.catalog.AllNotes(t.subject.Name, catalog.SortID)
		if err != nil {
			return err
		}
		for _, c := range children {
			if c.Main {
				continue
			}
			ct, err := m.target(t.subject, c)
			if err != nil {
				return err
			}
			byPath[ct.path] = append(byPath[ct.path], t)
		}
	}
	if len(byPath) == 0 {
		return nil
	}
	files := make([]string, 0, len(byPath))
	for p := range byPath {
		files = append(files, p)
	}

	return watcher.Watch(ctx, files, watcher.DefaultDebounce, m.logger, func(path string) {
		report := &Report{Kind: KindCompile}
		m.compile(ctx, report, byPath[path], false)
		notify(report)
	})
}
