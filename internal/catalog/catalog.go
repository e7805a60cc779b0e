package catalog

import "github.com/starford/texture/internal/models"

// Catalog defines the record-keeping operations the coordinator relies on.
// Consumers should depend on this interface rather than the concrete *Store.
type Catalog interface {
	CreateSubject(name string) (models.Subject, error)
	GetSubject(name string) (models.Subject, error)
	ListSubjects(sort string) ([]models.Subject, error)
	DeleteSubject(name string) error
	CreateNote(subject, title string) (models.Note, error)
	GetNote(subject, title string) (models.Note, error)
	GetNoteByID(id int64) (models.Note, error)
	DeleteNote(subject, title string) error
	ListNotes(subject, selector string) ([]models.Note, error)
	MainNote(subject string) (models.Note, error)
	AllNotes(subject, sort string) ([]models.Note, error)
	MarkCompiled(noteID int64, sum string) error
	Close() error
}

// Verify *Store satisfies Catalog at compile time.
var _ Catalog = (*Store)(nil)
