package binder

import (
	"bytes"
	"fmt"
	"text/template"
)

// DefaultNoteTemplate is the source of a freshly added note.
const DefaultNoteTemplate = `\documentclass[class=memoir, crop=false, oneside, 14pt]{standalone}

% document metadata
\author{<< .Author >>}
\title{<< .Title >>}
\date{<< .Date >>}

\begin{document}

\end{document}
`

// DefaultMainTemplate is the source of a subject's main note. It pulls in
// every other note of the subject as a part.
const DefaultMainTemplate = `\documentclass[class=memoir, crop=false, oneside, 12pt]{standalone}

% document metadata
\author{<< .Author >>}
\title{<< .Title >>}
\date{<< .Date >>}

\begin{document}
% Frontmatter of the class note
<< if .Preface >>\chapter{Preface}
<< .Preface >>
\newpage
<< end >>
<< range .Notes >>\part{<< .Title >>}
\inputchilddocument{<< .File >>}

<< end >>
\end{document}
`

// DefaultLatexmkrc is written to the profile root and linked from every
// subject directory.
const DefaultLatexmkrc = `ensure_path( 'TEXINPUTS', '../../styles//' );
`

// Templates holds the parsed note and main-note templates. LaTeX is brace
// heavy, so actions are delimited with << and >>.
type Templates struct {
	note *template.Template
	main *template.Template
}

type noteData struct {
	Title   string
	Subject string
	Author  string
	Date    string
}

type mainEntry struct {
	Title string
	File  string
}

type mainData struct {
	Title   string
	Author  string
	Date    string
	Preface string
	Notes   []mainEntry
}

// ParseTemplates parses the given sources; an empty source selects the
// built-in default.
func ParseTemplates(note, main string) (*Templates, error) {
	if note == "" {
		note = DefaultNoteTemplate
	}
	if main == "" {
		main = DefaultMainTemplate
	}
	nt, err := template.New("note").Delims("<<", ">>").Option("missingkey=zero").Parse(note)
	if err != nil {
		return nil, fmt.Errorf("binder: parse note template: %w", err)
	}
	mt, err := template.New("main").Delims("<<", ">>").Option("missingkey=zero").Parse(main)
	if err != nil {
		return nil, fmt.Errorf("binder: parse main template: %w", err)
	}
	return &Templates{note: nt, main: mt}, nil
}

func (t *Templates) renderNote(d noteData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.note.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("binder: render note: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *Templates) renderMain(d mainData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.main.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("binder: render main: %w", err)
	}
	return buf.Bytes(), nil
}
