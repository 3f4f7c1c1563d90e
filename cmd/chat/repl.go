package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wolfman30/mediassist/internal/conversation"
)

var commandHelp = []string{"/upload <path>", "/clear", "/history", "/reset", "/quit"}

type chatAssistant interface {
	StartSession(ctx context.Context) (*conversation.Session, error)
	HandleMessage(ctx context.Context, sessionID, text string) (*conversation.Reply, error)
	AttachDocument(ctx context.Context, sessionID, filename, mimeType string, blob []byte) (*conversation.DocumentResult, error)
	ClearDocument(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]conversation.ChatMessage, error)
	Reset(ctx context.Context, sessionID string) error
}

type repl struct {
	chat      chatAssistant
	in        io.Reader
	out       io.Writer
	readFile  func(string) ([]byte, error)
	sessionID string
}

func newREPL(chat chatAssistant, in io.Reader, out io.Writer) *repl {
	return &repl{chat: chat, in: in, out: out, readFile: os.ReadFile}
}

// Run reads lines until EOF, /quit or ctx is cancelled.
func (r *repl) Run(ctx context.Context) error {
	if err := r.start(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r.in)
	r.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			r.prompt()
			continue
		}
		quit, err := r.handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}
		r.prompt()
	}
	return scanner.Err()
}

func (r *repl) start(ctx context.Context) error {
	session, err := r.chat.StartSession(ctx)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	r.sessionID = session.ID
	for _, msg := range session.History.Visible() {
		r.say(msg.Content)
	}
	return nil
}

func (r *repl) prompt() { fmt.Fprint(r.out, "You: ") }

func (r *repl) say(text string) { fmt.Fprintf(r.out, "MediAssist: %s\n", text) }

// handle runs one input line. Only session store failures are returned;
// backend and document problems are reported to the user.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintf(r.out, "Commands: %s\n", strings.Join(commandHelp, ", "))
	case "/upload":
		r.upload(ctx, strings.TrimSpace(arg))
	case "/clear":
		if err := r.chat.ClearDocument(ctx, r.sessionID); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "Document cleared.")
	case "/history":
		turns, err := r.chat.History(ctx, r.sessionID)
		if err != nil {
			return false, err
		}
		for _, t := range turns {
			fmt.Fprintf(r.out, "[%s] %s\n", t.Role, t.Content)
		}
	case "/reset":
		if err := r.chat.Reset(ctx, r.sessionID); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "Conversation reset.")
		if err := r.start(ctx); err != nil {
			return false, err
		}
	default:
		reply, err := r.chat.HandleMessage(ctx, r.sessionID, line)
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage):
		case errors.Is(err, conversation.ErrBackendUnavailable):
			fmt.Fprintf(r.out, "Error: the assistant is unavailable right now (%v). Please try again.\n", err)
		case err != nil:
			return false, err
		default:
			r.say(reply.Text)
		}
	}
	return false, nil
}

func (r *repl) upload(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(r.out, "Usage: /upload <path>")
		return
	}
	blob, err := r.readFile(path)
	if err != nil {
		fmt.Fprintf(r.out, "Could not read %s: %v\n", path, err)
		return
	}
	res, err := r.chat.AttachDocument(ctx, r.sessionID, filepath.Base(path), "", blob)
	if err != nil {
		fmt.Fprintf(r.out, "Upload failed: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, res.Message)
}
