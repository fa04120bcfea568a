// Package repl is the line-oriented front-end: one prompt, one action per line.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"DocChat/internal/chatclient"
	"DocChat/internal/command"
	"DocChat/internal/session"
	"DocChat/internal/watch"

	"github.com/fatih/color"
)

var (
	userLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	botLabel    = color.New(color.FgCyan, color.Bold).SprintFunc()
	systemLabel = color.New(color.FgYellow, color.Bold).SprintFunc()
	faint       = color.New(color.Faint).SprintFunc()
)

// REPL reads questions and commands line by line.
type REPL struct {
	client *chatclient.ChatClient
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	mu        sync.Mutex // guards out
	stopWatch func()
}

// New wires a REPL to a chat client. Replies are printed as they are appended,
// including those produced by watch mode between prompts.
func New(client *chatclient.ChatClient, in io.Reader, out io.Writer, logger *slog.Logger) *REPL {
	r := &REPL{
		client: client,
		in:     in,
		out:    out,
		logger: logger,
	}
	client.OnChange(func(ev chatclient.Event) {
		if ev.Kind == chatclient.MessageAppended && ev.Message.Sender != session.SenderUser {
			r.printMessage(ev.Message)
		}
	})
	return r
}

// Run starts the loop and returns on EOF or /quit.
func (r *REPL) Run(ctx context.Context) error {
	defer r.unwatch()

	r.printf("=== DocChat ===\n")
	r.printf("Session: %s\n", r.client.Session().ID)
	if doc, ok := r.client.File(); ok {
		r.printf("Document: %s\n", doc.Name)
	}
	r.printf("Type /help for commands, /quit to exit\n\n")
	for _, msg := range r.client.Messages() {
		r.printMessage(msg)
	}

	scanner := bufio.NewScanner(r.in)
	for {
		r.printf("%s ", userLabel("You:"))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if cmd, ok := command.Parse(input); ok {
			quit, err := r.handleCommand(ctx, cmd)
			if err != nil {
				r.notice(err)
				r.logger.Error("command error", "command", cmd.Name, "error", err)
			}
			if quit {
				break
			}
			continue
		}

		r.client.SetDraft(input)
		r.printf("%s\n", faint("Typing..."))
		if err := r.client.SubmitDraft(ctx); err != nil {
			r.notice(err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	r.printf("Goodbye!\n")
	return nil
}

func (r *REPL) handleCommand(ctx context.Context, cmd command.Command) (bool, error) {
	switch cmd.Name {
	case command.Quit:
		return true, nil

	case command.File:
		if cmd.Arg == "" {
			return false, fmt.Errorf("usage: /file <path>")
		}
		doc, err := r.client.SelectFile(cmd.Arg)
		if err != nil {
			return false, err
		}
		r.printf("Selected %s (%d bytes)\n", doc.Name, doc.Size)
		return false, nil

	case command.Upload:
		return false, r.client.Upload(ctx)

	case command.Watch:
		return false, r.watch(ctx)

	case command.Unwatch:
		if !r.unwatch() {
			r.printf("Not watching.\n")
		}
		return false, nil

	case command.ClearDraft:
		r.client.SetDraft("")
		return false, nil

	case command.Help:
		r.printf("%s\n", command.HelpText())
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", cmd.Name)
	}
}

func (r *REPL) watch(ctx context.Context) error {
	doc, ok := r.client.File()
	if !ok {
		return chatclient.ErrNoFileSelected
	}
	r.unwatch()

	stop, err := watch.Follow(ctx, doc.Path, r.client, chatclient.ErrBusy, r.logger)
	if err != nil {
		return err
	}
	r.stopWatch = stop
	r.printf("Watching %s for changes\n", doc.Name)
	return nil
}

func (r *REPL) unwatch() bool {
	if r.stopWatch == nil {
		return false
	}
	r.stopWatch()
	r.stopWatch = nil
	return true
}

func (r *REPL) notice(err error) {
	text := err.Error()
	if errors.Is(err, chatclient.ErrNoFileSelected) {
		text = "Please select a file! Use /file <path>."
	}
	r.printf("%s %s\n", systemLabel("Notice:"), text)
}

func (r *REPL) printMessage(msg session.Message) {
	var label string
	switch msg.Sender {
	case session.SenderUser:
		label = userLabel("You:")
	case session.SenderBot:
		label = botLabel("Bot:")
	default:
		label = systemLabel("System:")
	}
	r.printf("%s %s %s\n\n", faint("["+msg.Timestamp()+"]"), label, msg.Text)
}

func (r *REPL) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
