// Package editor opens note sources in the user's text editor.
package editor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/starford/texture/internal/apperr"
)

// Placeholder is replaced by the absolute path of the note.
const Placeholder = "{note}"

// Command builds the argv for opening path with the command template. A
// template without a placeholder gets the path appended.
func Command(template, path string) ([]string, error) {
	words, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("editor: parse command %q: %w", template, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("editor: empty command")
	}
	found := false
	for i, w := range words {
		if strings.Contains(w, Placeholder) {
			words[i] = strings.ReplaceAll(w, Placeholder, path)
			found = true
		}
	}
	if !found {
		words = append(words, path)
	}
	return words, nil
}

// Streams are the standard streams handed to the editor process.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Open runs the editor on path and waits for it to exit.
func Open(ctx context.Context, template, path string, s Streams) error {
	argv, err := Command(template, path)
	if err != nil {
		return err
	}
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrNoCollaborator, argv[0])
	}
	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = s.In, s.Out, s.Err
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor: %s: %w", argv[0], err)
	}
	return nil
}
