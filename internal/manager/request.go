package manager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/texture/internal/names"
)

// Kind is the top-level operation of a request.
type Kind int

const (
	KindAdd Kind = iota + 1
	KindRemove
	KindCompile
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	case KindCompile:
		return "compile"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// NoteGroup names notes under one subject. A group without titles refers to
// the subject itself.
type NoteGroup struct {
	Subject string
	Titles  []string
}

// Request is one user invocation of add, remove or compile.
type Request struct {
	Kind     Kind
	Subjects []string
	Notes    []NoteGroup
	Cache    bool // compile only: skip unchanged notes
	Watch    bool // compile only: recompile on change
}

// Empty reports whether the request names nothing.
func (r Request) Empty() bool {
	return len(r.Subjects) == 0 && len(r.Notes) == 0
}

// Request flags.
const (
	flagSubject      = "--subject"
	flagSubjectShort = "-s"
	flagNote         = "--note"
	flagNoteShort    = "-n"
	flagCache        = "--cache"
	flagWatch        = "--watch"
)

// ParseRequest parses the argument list of add, remove or compile:
//
//	[--subject NAME...]... [--note SUBJECT [TITLE...]]... [--cache] [--watch]
//
// Values run until the next flag. Names and titles are trimmed.
func ParseRequest(kind Kind, args []string) (Request, error) {
	req := Request{Kind: kind}
	const (
		none = iota
		inSubjects
		inNoteSubject
		inNoteTitles
	)
	state := none
	for _, arg := range args {
		switch arg {
		case flagSubject, flagSubjectShort:
			state = inSubjects
			continue
		case flagNote, flagNoteShort:
			req.Notes = append(req.Notes, NoteGroup{})
			state = inNoteSubject
			continue
		case flagCache, flagWatch:
			if kind != KindCompile {
				return Request{}, fmt.Errorf("%s: flag %s is only valid for compile", kind, arg)
			}
			if arg == flagCache {
				req.Cache = true
			} else {
				req.Watch = true
			}
			state = none
			continue
		}
		if strings.HasPrefix(arg, "--") {
			return Request{}, fmt.Errorf("%s: unknown flag %s", kind, arg)
		}

		value := strings.TrimSpace(arg)
		switch state {
		case inSubjects:
			req.Subjects = append(req.Subjects, value)
		case inNoteSubject:
			req.Notes[len(req.Notes)-1].Subject = value
			state = inNoteTitles
		case inNoteTitles:
			g := &req.Notes[len(req.Notes)-1]
			g.Titles = append(g.Titles, value)
		default:
			return Request{}, fmt.Errorf("%s: unexpected argument %q, expected %s or %s", kind, arg, flagSubject, flagNote)
		}
	}
	for _, g := range req.Notes {
		if g.Subject == "" {
			return Request{}, fmt.Errorf("%s: %s requires a subject", kind, flagNote)
		}
	}
	if req.Empty() {
		return Request{}, fmt.Errorf("%s: nothing to do, use %s or %s", kind, flagSubject, flagNote)
	}
	return req, nil
}

// Validate checks every subject name and note title of the request and
// returns all failures joined. The :all: selector is accepted in subject and
// title position for remove and compile.
func (r Request) Validate() error {
	selectors := r.Kind == KindRemove || r.Kind == KindCompile
	var errs []error
	checkSubject := func(name string) {
		if selectors && names.IsAll(name) {
			return
		}
		if err := names.ValidateSubjectName(name); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range r.Subjects {
		checkSubject(s)
	}
	for _, g := range r.Notes {
		checkSubject(g.Subject)
		for _, t := range g.Titles {
			if selectors && names.IsAll(t) {
				continue
			}
			if err := names.ValidateNoteTitle(t); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
