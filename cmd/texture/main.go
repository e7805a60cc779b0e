package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/texture/internal"
	pkgconfig "github.com/starford/texture/pkg/config"
)

// newApp builds the command tree. opts are appended to the options every
// command opens the profile with.
func newApp(opts ...internal.Option) *cli.Command {
	return &cli.Command{
		Name:  "texture",
		Usage: "Manage a binder of LaTeX notes organized by subject",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "texture.yaml",
				Value:       "texture.yaml",
				Sources:     cli.EnvVars("TEXTURE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Directory containing the texture-notes-profile directory",
				Sources: cli.EnvVars("TEXTURE_TARGET"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("TEXTURE_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			initCommand(opts),
			requestCommand(requestAdd, opts),
			requestCommand(requestRemove, opts),
			requestCommand(requestCompile, opts),
			listCommand(opts),
			openCommand(opts),
			checkCommand(opts),
		},
	}
}

// openApp loads the configuration, applies the global flags and opens the
// profile.
func openApp(ctx context.Context, cmd *cli.Command, create bool, opts []internal.Option) (*internal.App, error) {
	root := cmd.Root()

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(root.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if target := root.String("target"); target != "" {
		cfg.Profile.Path = target
	}
	if level := root.String("log-level"); level != "" {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	all := []internal.Option{internal.WithConfig(cfg)}
	if create {
		all = append(all, internal.WithCreateProfile())
	}
	all = append(all, opts...)

	app, err := internal.Open(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	return app, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("texture failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
