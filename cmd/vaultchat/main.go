package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultchat/internal"
	pkgconfig "github.com/starford/vaultchat/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// stderrLogger keeps stdout free for command output and the MCP protocol.
func stderrLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}

// withRuntime opens the assistant for a one-shot CLI command.
func withRuntime(ctx context.Context, cmd *cli.Command, fn func(*internal.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
	if err != nil {
		return fmt.Errorf("app init error: %w", err)
	}
	defer rt.Close()
	return fn(rt)
}

func argText(cmd *cli.Command, usage string) (string, error) {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("usage: %s %s", cmd.Name, usage)
	}
	return text, nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	term, err := argText(cmd, "<term>")
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		answer, err := rt.Assistant.Search(ctx, term)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	})
}

func chat(ctx context.Context, cmd *cli.Command) error {
	msg, err := argText(cmd, "<message>")
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		id := cmd.String("session")
		if id == "" {
			if id, err = rt.Assistant.OpenSession(ctx); err != nil {
				return err
			}
		}
		reply, err := rt.Assistant.Chat(ctx, id, msg)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		if rt.Config.Transcripts.Enabled {
			fmt.Fprintf(os.Stderr, "\nsession: %s (continue with --session %s)\n", id, id)
		}
		return nil
	})
}

func analyze(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		res, err := rt.Assistant.Analyze(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Notes: %d (sampled %d, %d words)\n\n%s\n",
			res.Stats.TotalNotes, res.Stats.SampledNotes, res.Stats.SampledWords, res.Report)
		return nil
	})
}

func generate(ctx context.Context, cmd *cli.Command) error {
	topic, err := argText(cmd, "<topic>")
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		note, err := rt.Assistant.Generate(ctx, topic, cmd.String("style"))
		if err != nil {
			return err
		}
		fmt.Println(note.Body)
		if !cmd.Bool("save") {
			return nil
		}
		path, err := rt.Assistant.Save(ctx, note, cmd.Bool("force"))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\nsaved: %s\n", path)
		return nil
	})
}

func repl(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(ctx, cmd, func(rt *internal.Runtime) error {
		return internal.REPL(ctx, rt.Assistant, rt.Store.Root(), os.Stdin, os.Stdout)
	})
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogger(stderrLogger(cfg)),
		internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:    "vaultchat",
		Usage:   "Ask questions about, converse with, and extend a Markdown notes vault using a language model",
		Version: version,
		Action:  repl,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (defaults apply when it is missing)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Answer a question from the notes that mention a term",
				ArgsUsage: "<term>",
				Action:    search,
			},
			{
				Name:      "chat",
				Usage:     "Send one message about your vault",
				ArgsUsage: "<message>",
				Action:    chat,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Continue a stored conversation"},
				},
			},
			{
				Name:   "analyze",
				Usage:  "Summarise themes, organisation ideas and connections",
				Action: analyze,
			},
			{
				Name:      "generate",
				Usage:     "Draft a new note on a topic",
				ArgsUsage: "<topic>",
				Action:    generate,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "style", Usage: "Writing style", Value: "detailed"},
					&cli.BoolFlag{Name: "save", Usage: "Write the note into the vault"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Overwrite an existing note"},
				},
			},
			{
				Name:   "repl",
				Usage:  "Interactive session (default)",
				Action: repl,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live vault events",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Run an MCP server on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
