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

// Sort orders accepted by the listing queries.
const (
	SortID    = "id"
	SortName  = "name"
	SortTitle = "title"
	SortDate  = "date"
)

// CreateSubject inserts a subject together with its main note.
// It fails with apperr.ErrDuplicateSubject when the name, or the directory
// slug derived from it, is already taken.
func (s *Store) CreateSubject(name string) (models.Subject, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return models.Subject{}, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	subj := models.Subject{
		Name:      name,
		Slug:      names.Slug(name),
		CreatedAt: time.Now().UTC(),
	}

	var exists int
	err = tx.QueryRow(`SELECT count(*) FROM subjects WHERE name = ? OR slug = ?`, subj.Name, subj.Slug).Scan(&exists)
	if err != nil {
		return models.Subject{}, fmt.Errorf("catalog: check subject: %w", err)
	}
	if exists > 0 {
		return models.Subject{}, fmt.Errorf("%w: %q", apperr.ErrDuplicateSubject, name)
	}

	res, err := tx.Exec(`INSERT INTO subjects (name, slug, created_at) VALUES (?, ?, ?)`,
		subj.Name, subj.Slug, subj.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Subject{}, fmt.Errorf("%w: %q", apperr.ErrDuplicateSubject, name)
		}
		return models.Subject{}, fmt.Errorf("catalog: insert subject: %w", err)
	}
	if subj.ID, err = res.LastInsertId(); err != nil {
		return models.Subject{}, fmt.Errorf("catalog: subject id: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO notes (subject_id, title, stem, main, created_at) VALUES (?, ?, ?, 1, ?)`,
		subj.ID, models.MainNoteTitle, models.MainNoteFile, subj.CreatedAt)
	if err != nil {
		return models.Subject{}, fmt.Errorf("catalog: insert main note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Subject{}, fmt.Errorf("catalog: commit: %w", err)
	}
	return subj, nil
}

// GetSubject returns the subject with the exact (case-sensitive) name.
func (s *Store) GetSubject(name string) (models.Subject, error) {
	return getSubject(s.conn, name)
}

// ListSubjects returns every subject. sort is one of SortID, SortName or
// SortDate; anything else yields insertion order.
func (s *Store) ListSubjects(sort string) ([]models.Subject, error) {
	order := "id"
	switch sort {
	case SortName:
		order = "name"
	case SortDate:
		order = "created_at, id"
	}
	rows, err := s.conn.Query(`SELECT id, name, slug, created_at FROM subjects ORDER BY ` + order)
	if err != nil {
		return nil, fmt.Errorf("catalog: list subjects: %w", err)
	}
	defer rows.Close()

	var out []models.Subject
	for rows.Next() {
		var subj models.Subject
		if err := rows.Scan(&subj.ID, &subj.Name, &subj.Slug, &subj.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, subj)
	}
	return out, rows.Err()
}

// DeleteSubject removes a subject and, in the same transaction, every note
// it owns.
func (s *Store) DeleteSubject(name string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	subj, err := getSubject(tx, name)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE subject_id = ?`, subj.ID); err != nil {
		return fmt.Errorf("catalog: delete notes: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM subjects WHERE id = ?`, subj.ID); err != nil {
		return fmt.Errorf("catalog: delete subject: %w", err)
	}
	return tx.Commit()
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getSubject(q queryer, name string) (models.Subject, error) {
	var subj models.Subject
	err := q.QueryRow(`SELECT id, name, slug, created_at FROM subjects WHERE name = ?`, name).
		Scan(&subj.ID, &subj.Name, &subj.Slug, &subj.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Subject{}, fmt.Errorf("%w: %q", apperr.ErrUnknownSubject, name)
	}
	if err != nil {
		return models.Subject{}, fmt.Errorf("catalog: get subject: %w", err)
	}
	return subj, nil
}
