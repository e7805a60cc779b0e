package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/starford/texture/internal"
	"github.com/starford/texture/internal/editor"
	"github.com/starford/texture/internal/manager"
)

type requestVerb struct {
	kind    manager.Kind
	name    string
	aliases []string
	usage   string
	args    string
}

var (
	requestAdd = requestVerb{
		kind:  manager.KindAdd,
		name:  "add",
		usage: "Add subjects and notes",
		args:  "[--subject NAME...]... [--note SUBJECT TITLE...]...",
	}
	requestRemove = requestVerb{
		kind:    manager.KindRemove,
		name:    "remove",
		aliases: []string{"rm"},
		usage:   "Remove subjects and notes; :all: selects every subject or note",
		args:    "[--subject NAME...|:all:]... [--note SUBJECT TITLE...|:all:]...",
	}
	requestCompile = requestVerb{
		kind:    manager.KindCompile,
		name:    "compile",
		aliases: []string{"make"},
		usage:   "Compile main notes of subjects, or individual notes, to PDF",
		args:    "[--subject NAME...]... [--note SUBJECT TITLE...|:all:]... [--cache] [--watch]",
	}
)

func initCommand(opts []internal.Option) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the profile directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd, true, opts)
			if err != nil {
				return err
			}
			defer app.Close()
			newPrinter(cmd.Root().Writer).line("profile ready at " + app.Root)
			return nil
		},
	}
}

// requestCommand builds add, remove and compile. Their repeated
// multi-valued groups are parsed by manager.ParseRequest.
func requestCommand(v requestVerb, opts []internal.Option) *cli.Command {
	return &cli.Command{
		Name:            v.name,
		Aliases:         v.aliases,
		Usage:           v.usage,
		ArgsUsage:       v.args,
		SkipFlagParsing: true,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if slices.Contains(args, "-h") || slices.Contains(args, "--help") {
				return cli.ShowSubcommandHelp(cmd)
			}
			req, err := manager.ParseRequest(v.kind, args)
			if err != nil {
				return err
			}

			app, err := openApp(ctx, cmd, false, opts)
			if err != nil {
				return err
			}
			defer app.Close()
			p := newPrinter(cmd.Root().Writer)

			if req.Kind == manager.KindCompile && req.Watch {
				var failed int
				err := app.Manager.Watch(ctx, req, func(r *manager.Report) {
					p.report(r, subjectNames(ctx, app))
					failed += len(r.Failed())
				})
				if err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d compilations failed while watching", failed)
				}
				return nil
			}

			report, err := app.Manager.Execute(ctx, req)
			if err != nil {
				return err
			}
			p.report(report, subjectNames(ctx, app))
			if failed := len(report.Failed()); failed > 0 {
				return fmt.Errorf("%d of %d operations failed", failed, len(report.Outcomes))
			}
			return nil
		},
	}
}

func listCommand(opts []internal.Option) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List subjects and their notes",
		ArgsUsage: "[SUBJECT...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort by title, id or date",
				Value: manager.SortTitle,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd, false, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			listing, err := app.Manager.List(ctx, cmd.Args().Slice(), cmd.String("sort"))
			if err != nil {
				return err
			}
			newPrinter(cmd.Root().Writer).listing(listing)
			return nil
		},
	}
}

func openCommand(opts []internal.Option) *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a note in the editor",
		ArgsUsage: "SUBJECT TITLE | --id ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Catalog id of the note, as shown by list",
			},
			&cli.StringFlag{
				Name:    "execute",
				Aliases: []string{"e"},
				Usage:   "Editor command; {note} is replaced by the note's path",
				Sources: cli.EnvVars("TEXTURE_EDITOR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			req := manager.OpenRequest{Command: cmd.String("execute")}
			if raw := cmd.String("id"); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("open: invalid id %q", raw)
				}
				req.ID = id
			} else {
				if cmd.Args().Len() != 2 {
					return errors.New("open: expected SUBJECT TITLE or --id ID")
				}
				req.Subject, req.Title = cmd.Args().Get(0), cmd.Args().Get(1)
			}

			app, err := openApp(ctx, cmd, false, opts)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Manager.Open(ctx, req, editor.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
		},
	}
}

func checkCommand(opts []internal.Option) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report differences between the catalog and the notes on disk",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd, false, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			divs, err := app.Manager.Check(ctx)
			if err != nil {
				return err
			}
			newPrinter(cmd.Root().Writer).divergences(divs)
			if len(divs) > 0 {
				return fmt.Errorf("%d divergences found", len(divs))
			}
			return nil
		},
	}
}

// subjectNames returns a lazy lookup of every subject name, used for
// suggestions.
func subjectNames(ctx context.Context, app *internal.App) func() []string {
	return func() []string {
		listing, err := app.Manager.List(ctx, nil, manager.SortTitle)
		if err != nil {
			return nil
		}
		out := make([]string, len(listing))
		for i, l := range listing {
			out[i] = l.Subject.Name
		}
		return out
	}
}
