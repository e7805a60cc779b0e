package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/models"
	"github.com/starford/texture/internal/names"
)

const noteColumns = `
	SELECT n.id, n.subject_id, s.name, s.slug, n.title, n.stem, n.main, n.compiled_checksum, n.created_at
	FROM notes n
	JOIN subjects s ON s.id = n.subject_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(sc scanner) (models.Note, error) {
	var n models.Note
	err := sc.Scan(&n.ID, &n.SubjectID, &n.Subject, &n.SubjectSlug, &n.Title, &n.Stem, &n.Main, &n.CompiledChecksum, &n.CreatedAt)
	return n, err
}

// CreateNote inserts a note under an existing subject. The note's file stem
// is its title slug, or the digest stem when another note of the subject
// already owns that slug.
func (s *Store) CreateNote(subject, title string) (models.Note, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return models.Note{}, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	subj, err := getSubject(tx, subject)
	if err != nil {
		return models.Note{}, err
	}

	var exists int
	if err := tx.QueryRow(`SELECT count(*) FROM notes WHERE subject_id = ? AND title = ?`, subj.ID, title).Scan(&exists); err != nil {
		return models.Note{}, fmt.Errorf("catalog: check note: %w", err)
	}
	if exists > 0 {
		return models.Note{}, fmt.Errorf("%w: %q under %q", apperr.ErrDuplicateNote, title, subject)
	}

	stem, err := freeStem(tx, subj.ID, title)
	if err != nil {
		return models.Note{}, err
	}

	n := models.Note{
		SubjectID:   subj.ID,
		Subject:     subj.Name,
		SubjectSlug: subj.Slug,
		Title:       title,
		Stem:        stem,
		CreatedAt:   time.Now().UTC(),
	}
	res, err := tx.Exec(`INSERT INTO notes (subject_id, title, stem, main, created_at) VALUES (?, ?, ?, 0, ?)`,
		n.SubjectID, n.Title, n.Stem, n.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Note{}, fmt.Errorf("%w: %q under %q", apperr.ErrDuplicateNote, title, subject)
		}
		return models.Note{}, fmt.Errorf("catalog: insert note: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return models.Note{}, fmt.Errorf("catalog: note id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Note{}, fmt.Errorf("catalog: commit: %w", err)
	}
	return n, nil
}

func freeStem(q queryer, subjectID int64, title string) (string, error) {
	for _, stem := range []string{names.NoteStem(title), names.DigestStem(title)} {
		var taken int
		if err := q.QueryRow(`SELECT count(*) FROM notes WHERE subject_id = ? AND stem = ?`, subjectID, stem).Scan(&taken); err != nil {
			return "", fmt.Errorf("catalog: check stem: %w", err)
		}
		if taken == 0 {
			return stem, nil
		}
	}
	return "", fmt.Errorf("%w: no free file name for %q", apperr.ErrDuplicateNote, title)
}

// GetNote returns the note with the given title under subject.
func (s *Store) GetNote(subject, title string) (models.Note, error) {
	subj, err := getSubject(s.conn, subject)
	if err != nil {
		return models.Note{}, err
	}
	n, err := scanNote(s.conn.QueryRow(noteColumns+`WHERE n.subject_id = ? AND n.title = ?`, subj.ID, title))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, fmt.Errorf("%w: %q under %q", apperr.ErrUnknownNote, title, subject)
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("catalog: get note: %w", err)
	}
	return n, nil
}

// GetNoteByID returns the note with the given catalog id.
func (s *Store) GetNoteByID(id int64) (models.Note, error) {
	n, err := scanNote(s.conn.QueryRow(noteColumns+`WHERE n.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, fmt.Errorf("%w: id %d", apperr.ErrUnknownNote, id)
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("catalog: get note by id: %w", err)
	}
	return n, nil
}

// DeleteNote removes a single note. The main note is refused.
func (s *Store) DeleteNote(subject, title string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	subj, err := getSubject(tx, subject)
	if err != nil {
		return err
	}
	var (
		id   int64
		main bool
	)
	err = tx.QueryRow(`SELECT id, main FROM notes WHERE subject_id = ? AND title = ?`, subj.ID, title).Scan(&id, &main)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q under %q", apperr.ErrUnknownNote, title, subject)
	}
	if err != nil {
		return fmt.Errorf("catalog: get note: %w", err)
	}
	if main {
		return fmt.Errorf("%w: %q", apperr.ErrMainNote, subject)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: delete note: %w", err)
	}
	return tx.Commit()
}

// ListNotes resolves a note selector under subject. The :all: selector
// yields every note except the main note, in insertion order; any other
// selector is an exact title.
func (s *Store) ListNotes(subject, selector string) ([]models.Note, error) {
	if !names.IsAll(selector) {
		n, err := s.GetNote(subject, selector)
		if err != nil {
			return nil, err
		}
		return []models.Note{n}, nil
	}
	subj, err := getSubject(s.conn, subject)
	if err != nil {
		return nil, err
	}
	return s.queryNotes(noteColumns+`WHERE n.subject_id = ? AND n.main = 0 ORDER BY n.id`, subj.ID)
}

// MainNote returns the main note of subject.
func (s *Store) MainNote(subject string) (models.Note, error) {
	subj, err := getSubject(s.conn, subject)
	if err != nil {
		return models.Note{}, err
	}
	n, err := scanNote(s.conn.QueryRow(noteColumns+`WHERE n.subject_id = ? AND n.main = 1`, subj.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, fmt.Errorf("%w: main note of %q", apperr.ErrUnknownNote, subject)
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("catalog: get main note: %w", err)
	}
	return n, nil
}

// AllNotes returns every note of subject including the main note.
// sort is one of SortID, SortTitle or SortDate.
func (s *Store) AllNotes(subject, sort string) ([]models.Note, error) {
	subj, err := getSubject(s.conn, subject)
	if err != nil {
		return nil, err
	}
	order := "n.id"
	switch sort {
	case SortTitle:
		order = "n.title, n.id"
	case SortDate:
		order = "n.created_at, n.id"
	}
	return s.queryNotes(noteColumns+`WHERE n.subject_id = ? ORDER BY `+order, subj.ID)
}

// MarkCompiled records the source checksum of the last successful compile.
func (s *Store) MarkCompiled(noteID int64, sum string) error {
	res, err := s.conn.Exec(`UPDATE notes SET compiled_checksum = ? WHERE id = ?`, sum, noteID)
	if err != nil {
		return fmt.Errorf("catalog: mark compiled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", apperr.ErrUnknownNote, noteID)
	}
	return nil
}

// CountNotes returns the number of note records, main notes included.
func (s *Store) CountNotes() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count notes: %w", err)
	}
	return n, nil
}

func (s *Store) queryNotes(query string, args ...any) ([]models.Note, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
