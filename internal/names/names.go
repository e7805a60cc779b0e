// Package names enforces the naming rules for subjects and note titles and
// derives the on-disk slugs used for them.
package names

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/checksum"
	"github.com/starford/texture/internal/models"
)

const (
	MaxSubjectLength = 128
	MaxTitleLength   = 256
)

var (
	subjectRe   = regexp.MustCompile(`^[A-Za-z0-9 -]+$`)
	separatorRe = regexp.MustCompile(`\s+|-+`)
	nonAlnumRe  = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Reserved tokens are compared against the lower-cased value.
var (
	reservedSubjects = []any{models.AllSelector}
	reservedTitles   = []any{models.AllSelector, "stylesheets", "graphics"}
)

// ValidateSubjectName checks a subject name. The returned error is a
// *apperr.NameError wrapping the reason sentinel.
func ValidateSubjectName(name string) error {
	if err := validation.Validate(normalize(name), validation.NotIn(reservedSubjects...)); err != nil {
		return nameError("subject", name, apperr.ErrReservedName)
	}
	if err := validation.Validate(name, validation.RuneLength(0, MaxSubjectLength)); err != nil {
		return nameError("subject", name, apperr.ErrTooLong)
	}
	if err := validation.Validate(name, validation.Required, validation.Match(subjectRe)); err != nil {
		return nameError("subject", name, apperr.ErrInvalidCharacters)
	}
	// A name made only of spaces and hyphens has no directory slug.
	if Slug(name) == "" {
		return nameError("subject", name, apperr.ErrInvalidCharacters)
	}
	return nil
}

// ValidateNoteTitle checks a note title. Any character is allowed but the
// title must not be blank.
func ValidateNoteTitle(title string) error {
	if err := validation.Validate(normalize(title), validation.NotIn(reservedTitles...)); err != nil {
		return nameError("note", title, apperr.ErrReservedName)
	}
	if err := validation.Validate(title, validation.RuneLength(0, MaxTitleLength)); err != nil {
		return nameError("note", title, apperr.ErrTooLong)
	}
	if err := validation.Validate(strings.TrimSpace(title), validation.Required); err != nil {
		return nameError("note", title, apperr.ErrInvalidCharacters)
	}
	return nil
}

// IsAll reports whether s is the :all: selector in any letter case.
func IsAll(s string) bool {
	return normalize(s) == models.AllSelector
}

// Slug converts s to kebab-case: words are split on whitespace and hyphen
// runs, stripped of anything but ASCII letters and digits, and lower-cased.
func Slug(s string) string {
	var words []string
	for _, w := range separatorRe.Split(s, -1) {
		w = nonAlnumRe.ReplaceAllString(w, "")
		if w == "" {
			continue
		}
		words = append(words, strings.ToLower(w))
	}
	return strings.Join(words, "-")
}

// NoteStem returns the preferred file stem for a note title: its slug, or the
// digest stem when the slug is empty or would shadow the main note.
func NoteStem(title string) string {
	if slug := Slug(title); slug != "" && slug != models.MainNoteFile {
		return slug
	}
	return DigestStem(title)
}

// DigestStem returns a stem derived from a digest of the title.
func DigestStem(title string) string {
	return "note-" + checksum.Short(title, 12)
}

func normalize(s string) string {
	return strings.ToLower(s)
}

func nameError(field, value string, reason error) error {
	return &apperr.NameError{Field: field, Value: value, Reason: reason}
}
