package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/starford/texture/internal/apperr"
	"github.com/starford/texture/internal/manager"
	"github.com/starford/texture/internal/models"
)

var (
	mintGreen = lipgloss.Color("#A8E6CF")
	salmon    = lipgloss.Color("#FFB3BA")
	mutedGray = lipgloss.Color("#6B7280")
	amber     = lipgloss.Color("#FCD34D")
)

// printer writes human-readable command output. Colors are dropped when w
// is not a terminal.
type printer struct {
	w      io.Writer
	ok     lipgloss.Style
	fail   lipgloss.Style
	warn   lipgloss.Style
	muted  lipgloss.Style
	header lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:      w,
		ok:     r.NewStyle().Foreground(mintGreen),
		fail:   r.NewStyle().Foreground(salmon).Bold(true),
		warn:   r.NewStyle().Foreground(amber),
		muted:  r.NewStyle().Foreground(mutedGray),
		header: r.NewStyle().Bold(true),
	}
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

// report prints one line per outcome and a summary. names is consulted for
// "did you mean" hints on unknown subjects.
func (p *printer) report(r *manager.Report, names func() []string) {
	var candidates []string
	for _, o := range r.Outcomes {
		switch {
		case o.Err != nil:
			msg := p.fail.Render("✗") + " " + o.String()
			if errors.Is(o.Err, apperr.ErrUnknownSubject) {
				if candidates == nil {
					candidates = names()
				}
				if s := suggest(o.Subject, candidates); s != "" {
					msg += p.muted.Render(fmt.Sprintf(" (did you mean %q?)", s))
				}
			}
			p.line(msg)
		case o.Skipped:
			p.line(p.muted.Render("- " + o.String()))
		default:
			p.line(p.ok.Render("✓") + " " + o.String())
		}
	}
	failed := len(r.Failed())
	summary := fmt.Sprintf("%s: %d succeeded, %d failed", r.Kind, r.Succeeded(), failed)
	if failed > 0 {
		p.line(p.fail.Render(summary))
		return
	}
	p.line(p.muted.Render(summary))
}

func (p *printer) listing(ls []models.SubjectListing) {
	if len(ls) == 0 {
		p.line(p.muted.Render("no subjects"))
		return
	}
	for i, l := range ls {
		if i > 0 {
			p.line("")
		}
		p.line(p.header.Render(l.Subject.Name) + " " + p.muted.Render(filepath.Join("notes", l.Subject.Slug)))
		for _, n := range l.Notes {
			row := fmt.Sprintf("  %4d  %s", n.Note.ID, n.Note.Title)
			if n.Note.Main {
				row += p.muted.Render(" (main)")
			}
			row += " " + p.muted.Render(n.Note.CreatedAt.Local().Format("2006-01-02"))
			if n.Dangling {
				row += " " + p.warn.Render("[missing file]")
			}
			p.line(row)
		}
	}
}

func (p *printer) divergences(divs []models.Divergence) {
	if len(divs) == 0 {
		p.line(p.ok.Render("catalog and notes agree"))
		return
	}
	for _, d := range divs {
		what := d.Subject
		if d.Note != "" {
			what = fmt.Sprintf("%s/%s", d.Subject, d.Note)
		}
		if what == "" {
			what = "-"
		}
		p.line(fmt.Sprintf("%s %-14s %s %s", p.warn.Render("!"), d.Kind, what, p.muted.Render(d.Path)))
	}
}

// suggest returns the closest fuzzy match of name among candidates, or ""
// when nothing matches.
func suggest(name string, candidates []string) string {
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
