// Package models defines the domain types for the notes binder.
package models

import "time"

// AllSelector selects every non-main note of a subject, or every subject
// where a subject position accepts it.
const AllSelector = ":all:"

// MainNoteTitle is the title of the note created alongside every subject.
const MainNoteTitle = "Main"

// MainNoteFile is the file name (without extension) of the main note.
const MainNoteFile = "main"

// Subject is a binder divider.
type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a single titled document under a subject.
type Note struct {
	ID               int64     `json:"id"`
	SubjectID        int64     `json:"subject_id"`
	Subject          string    `json:"subject"`
	SubjectSlug      string    `json:"subject_slug"`
	Title            string    `json:"title"`
	Stem             string    `json:"stem"`
	Main             bool      `json:"main"`
	CompiledChecksum string    `json:"compiled_checksum,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubjectListing is a subject with its notes, as shown by the list command.
type SubjectListing struct {
	Subject Subject
	Notes   []NoteListing
}

// NoteListing is a note plus whether its source file is missing.
type NoteListing struct {
	Note     Note
	Dangling bool
}

// Divergence kinds reported by a consistency check.
const (
	DivergenceMissingDir   = "missing-dir"
	DivergenceMissingFile  = "missing-file"
	DivergenceUntrackedDir = "untracked-dir"
)

// Divergence describes one place where the catalog and the binder disagree.
type Divergence struct {
	Kind    string
	Subject string
	Note    string
	Path    string
}
