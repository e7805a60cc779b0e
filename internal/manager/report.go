package manager

import (
	"errors"
	"fmt"
	"strings"
)

// Operations recorded in a Report.
const (
	OpAddSubject     = "add subject"
	OpAddNote        = "add note"
	OpRemoveSubject  = "remove subject"
	OpRemoveNote     = "remove note"
	OpCompile        = "compile"
	OpResolveSubject = "resolve subject"
	OpResolveNote    = "resolve note"
)

// Outcome is the result of one sub-operation.
type Outcome struct {
	Op      string
	Subject string
	Note    string // empty for subject-level operations
	Detail  string // e.g. "exists", "cached", output path
	Pages   int    // pages of a compiled PDF, when known
	Skipped bool
	Err     error
}

// OK reports whether the sub-operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) target() string {
	if o.Note == "" {
		return fmt.Sprintf("%q", o.Subject)
	}
	return fmt.Sprintf("%q/%q", o.Subject, o.Note)
}

func (o Outcome) String() string {
	var b strings.Builder
	b.WriteString(o.Op)
	b.WriteByte(' ')
	b.WriteString(o.target())
	switch {
	case o.Err != nil:
		b.WriteString(": ")
		b.WriteString(o.Err.Error())
	case o.Detail != "":
		b.WriteString(" (")
		b.WriteString(o.Detail)
		if o.Pages > 0 {
			fmt.Fprintf(&b, ", %d pages", o.Pages)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Report is the ordered list of outcomes of a request.
type Report struct {
	Kind     Kind
	Outcomes []Outcome
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) fail(op, subject, note string, err error) {
	r.add(Outcome{Op: op, Subject: subject, Note: note, Err: err})
}

// Failed returns the outcomes that carry an error, in order.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded counts the outcomes without an error.
func (r *Report) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}

// Err joins every failure, or returns nil when all sub-operations succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s %s: %w", o.Op, o.target(), o.Err))
	}
	return errors.Join(errs...)
}
