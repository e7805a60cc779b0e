package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/binder"
	"github.com/starford/texture/internal/catalog"
	"github.com/starford/texture/internal/editor"
	"github.com/starford/texture/internal/models"
)

// List orders.
const (
	SortTitle = catalog.SortTitle
	SortID    = catalog.SortID
	SortDate  = catalog.SortDate
)

// List returns the named subjects, or every subject when none is named,
// together with their notes. sort is SortTitle, SortID or SortDate and
// applies to subjects (title sorts by name) and to notes. Empty means
// SortTitle.
func (m *Manager) List(_ context.Context, subjects []string, sort string) ([]models.SubjectListing, error) {
	switch sort {
	case "":
		sort = SortTitle
	case SortTitle, SortID, SortDate:
	default:
		return nil, fmt.Errorf("manager: unknown sort order %q", sort)
	}

	var selected []models.Subject
	if len(subjects) == 0 {
		subjSort := sort
		if sort == SortTitle {
			subjSort = catalog.SortName
		}
		all, err := m.catalog.ListSubjects(subjSort)
		if err != nil {
			return nil, err
		}
		selected = all
	} else {
		var errs []error
		for _, name := range subjects {
			subj, err := m.catalog.GetSubject(name)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			selected = append(selected, subj)
		}
		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
	}

	out := make([]models.SubjectListing, 0, len(selected))
	for _, subj := range selected {
		notes, err := m.catalog.AllNotes(subj.Name, sort)
		if err != nil {
			return nil, err
		}
		listing := models.SubjectListing{Subject: subj}
		for _, n := range notes {
			listing.Notes = append(listing.Notes, models.NoteListing{Note: n, Dangling: !m.binder.NoteExists(n)})
		}
		out = append(out, listing)
	}
	return out, nil
}

// OpenRequest selects a note by subject and title, or by catalog id when ID
// is set. Command overrides the configured editor command.
type OpenRequest struct {
	Subject string
	Title   string
	ID      int64
	Command string
}

// Open launches the editor on a note's source file and waits for it.
func (m *Manager) Open(ctx context.Context, req OpenRequest, s editor.Streams) error {
	var (
		note models.Note
		err  error
	)
	if req.ID != 0 {
		note, err = m.catalog.GetNoteByID(req.ID)
	} else {
		note, err = m.catalog.GetNote(req.Subject, req.Title)
	}
	if err != nil {
		return err
	}
	path, err := m.binder.NotePath(note)
	if err != nil {
		return err
	}
	if !m.binder.NoteExists(note) {
		return &apperr.IOError{Op: "open", Path: path, Err: apperr.ErrDangling}
	}

	command := req.Command
	if command == "" {
		command = m.editor
	}
	if command == "" {
		return fmt.Errorf("manager: no editor command configured")
	}
	m.logger.Info("manager: opening note",
		slog.String("subject", note.Subject), slog.String("note", note.Title), slog.String("path", path))
	return m.open(ctx, command, path, s)
}

// Check compares the catalog with the binder on disk and reports every
// divergence. Nothing is repaired.
func (m *Manager) Check(_ context.Context) ([]models.Divergence, error) {
	subjects, err := m.catalog.ListSubjects(catalog.SortID)
	if err != nil {
		return nil, err
	}

	var out []models.Divergence
	tracked := make(map[string]bool, len(subjects))
	for _, subj := range subjects {
		tracked[subj.Slug] = true
		dir, err := m.binder.SubjectDir(subj.Slug)
		if err != nil {
			return nil, err
		}
		if !m.binder.SubjectExists(subj) {
			out = append(out, models.Divergence{Kind: models.DivergenceMissingDir, Subject: subj.Name, Path: dir})
			continue
		}
		notes, err := m.catalog.AllNotes(subj.Name, catalog.SortID)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			if m.binder.NoteExists(n) {
				continue
			}
			path, _ := m.binder.NotePath(n)
			out = append(out, models.Divergence{Kind: models.DivergenceMissingFile, Subject: subj.Name, Note: n.Title, Path: path})
		}
	}

	dirs, err := m.binder.SubjectDirs()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if tracked[d] {
			continue
		}
		out = append(out, models.Divergence{
			Kind: models.DivergenceUntrackedDir,
			Path: filepath.Join(m.binder.Root(), binder.NotesDirName, d),
		})
	}
	if len(out) > 0 {
		m.logger.Warn("manager: catalog and binder diverge", slog.Int("count", len(out)))
	}
	return out, nil
}
