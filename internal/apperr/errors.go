// Package apperr defines the error taxonomy shared by the catalog, the
// filesystem projector and the operation coordinator.
package apperr

import (
	"errors"
	"fmt"
)

// Name errors. Always fatal to the item, reported before any mutation.
var (
	ErrInvalidCharacters = errors.New("invalid characters")
	ErrTooLong           = errors.New("too long")
	ErrReservedName      = errors.New("reserved name")
)

// Catalog errors. Fatal to the item, never to the batch.
var (
	ErrDuplicateSubject = errors.New("subject already exists")
	ErrDuplicateNote    = errors.New("note already exists")
	ErrUnknownSubject   = errors.New("unknown subject")
	ErrUnknownNote      = errors.New("unknown note")
	ErrMainNote         = errors.New("main note can only be removed with its subject")
)

// Filesystem and collaborator errors.
var (
	ErrAlreadyExists  = errors.New("already exists")
	ErrDangling       = errors.New("catalog entry has no file on disk")
	ErrCompileFailed  = errors.New("compilation failed")
	ErrNoCollaborator = errors.New("external program not found")
)

// NameError reports a subject name or note title rejected by validation.
type NameError struct {
	Field  string // "subject" or "note"
	Value  string
	Reason error
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %v", e.Field, e.Value, e.Reason)
}

func (e *NameError) Unwrap() error { return e.Reason }

// IOError reports a failed filesystem projection.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsNameError reports whether err is (or wraps) a NameError.
func IsNameError(err error) bool {
	var ne *NameError
	return errors.As(err, &ne)
}

// IsCatalogError reports whether err is one of the catalog sentinels.
func IsCatalogError(err error) bool {
	return errors.Is(err, ErrDuplicateSubject) ||
		errors.Is(err, ErrDuplicateNote) ||
		errors.Is(err, ErrUnknownSubject) ||
		errors.Is(err, ErrUnknownNote) ||
		errors.Is(err, ErrMainNote)
}

// IsIOError reports whether err is (or wraps) an IOError.
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
