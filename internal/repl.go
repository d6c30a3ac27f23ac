package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/assistant"
	"github.com/starford/vaultchat/internal/models"
)

// Assistant is what the interactive loop needs from *assistant.Service.
type Assistant interface {
	Search(ctx context.Context, term string) (string, error)
	Analyze(ctx context.Context) (assistant.Analysis, error)
	OpenSession(ctx context.Context) (string, error)
	Chat(ctx context.Context, id, msg string) (string, error)
	Generate(ctx context.Context, topic, style string) (models.GeneratedNote, error)
	Save(ctx context.Context, note models.GeneratedNote, overwrite bool) (string, error)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

const replHelp = `Commands:
  search <term>     search your notes
  chat <message>    talk about your notes
  analyze           analyze the vault
  generate <topic>  draft a new note
  quit              exit`

// REPL reads commands from in until quit or EOF. Chat messages share one
// conversation, opened on first use. Command failures are printed and the
// loop continues.
func REPL(ctx context.Context, svc Assistant, vault string, in io.Reader, out io.Writer) error {
	r := &repl{svc: svc, in: bufio.NewScanner(in), out: out}

	fmt.Fprintln(out, titleStyle.Render("vaultchat"))
	fmt.Fprintf(out, "Vault: %s\n\n%s\n", vault, replHelp)

	for {
		line, ok := r.prompt("\n> ")
		if !ok {
			return r.in.Err()
		}
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			fmt.Fprintln(out, "Bye!")
			return nil
		}
		if err := r.dispatch(ctx, line); err != nil {
			fmt.Fprintln(out, errStyle.Render("Error: "+err.Error()))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type repl struct {
	svc       Assistant
	in        *bufio.Scanner
	out       io.Writer
	sessionID string
}

func (r *repl) prompt(p string) (string, bool) {
	fmt.Fprint(r.out, p)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

func (r *repl) confirm(question string) bool {
	answer, ok := r.prompt(question + " (y/n): ")
	return ok && strings.HasPrefix(strings.ToLower(answer), "y")
}

func (r *repl) dispatch(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "search":
		if arg == "" {
			return errors.New("usage: search <term>")
		}
		fmt.Fprintln(r.out, hintStyle.Render("Searching..."))
		answer, err := r.svc.Search(ctx, arg)
		if err != nil {
			return err
		}
		r.show("Result", answer)

	case "chat":
		if arg == "" {
			return errors.New("usage: chat <message>")
		}
		if r.sessionID == "" {
			id, err := r.svc.OpenSession(ctx)
			if err != nil {
				return err
			}
			r.sessionID = id
		}
		fmt.Fprintln(r.out, hintStyle.Render("Thinking..."))
		reply, err := r.svc.Chat(ctx, r.sessionID, arg)
		if err != nil {
			return err
		}
		r.show("Assistant", reply)

	case "analyze":
		fmt.Fprintln(r.out, hintStyle.Render("Analyzing..."))
		res, err := r.svc.Analyze(ctx)
		if err != nil {
			return err
		}
		r.show("Analysis", res.Report)

	case "generate":
		if arg == "" {
			return errors.New("usage: generate <topic>")
		}
		fmt.Fprintln(r.out, hintStyle.Render("Generating..."))
		note, err := r.svc.Generate(ctx, arg, "")
		if err != nil {
			return err
		}
		r.show("Generated note", note.Body)
		if r.confirm("\nSave to vault?") {
			return r.save(ctx, note)
		}

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}

func (r *repl) save(ctx context.Context, note models.GeneratedNote) error {
	path, err := r.svc.Save(ctx, note, false)
	if errors.Is(err, apperr.ErrAlreadyExists) && r.confirm("A note with this name exists. Overwrite?") {
		path, err = r.svc.Save(ctx, note, true)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Saved: %s\n", path)
	return nil
}

func (r *repl) show(label, text string) {
	fmt.Fprintf(r.out, "\n%s\n%s\n", labelStyle.Render(label+":"), text)
}
