// Package shell is the interactive front end of the agent.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	agent "github.com/tuxsy/my-ai-agents"
)

const (
	Prompt          = "Tú: "
	AnswerPrefix    = "Asistente: "
	Farewell        = "Adiós."
	DefaultGreeting = "Asistente de calendario. Escribe 'salir' para terminar."
)

var exitWords = map[string]bool{
	"salir": true,
	"exit":  true,
	"quit":  true,
}

// IsExit reports whether line asks to end the session.
func IsExit(line string) bool {
	return exitWords[strings.ToLower(strings.TrimSpace(line))]
}

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
}

// Session is what the shell drives, normally an *agent.Agent.
type Session interface {
	Turn(ctx context.Context, utterance string) (string, error)
	Memory() *agent.Memory
}

type Shell struct {
	in       LineReader
	out      io.Writer
	session  Session
	usage    fmt.Stringer
	greeting string
	logger   *slog.Logger
}

type Option func(s *Shell)

// WithUsage enables the /usage command.
func WithUsage(u fmt.Stringer) Option {
	return func(s *Shell) {
		s.usage = u
	}
}

func WithGreeting(g string) Option {
	return func(s *Shell) {
		s.greeting = g
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) {
		s.logger = l
	}
}

func New(in LineReader, out io.Writer, session Session, opts ...Option) *Shell {
	s := &Shell{
		in:       in,
		out:      out,
		session:  session,
		greeting: DefaultGreeting,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// NewReadline creates a line editor showing the shell prompt. History is
// kept in historyFile when it is not empty.
func NewReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		HistoryFile:     historyFile,
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "salir",
	})
}

// Run reads utterances until an exit word, end of input or ctx is done.
// A failed turn is reported and the session continues.
func (s *Shell) Run(ctx context.Context) error {
	if s.greeting != "" {
		fmt.Fprintln(s.out, s.greeting)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := s.in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out, Farewell)
				return nil
			}
			return fmt.Errorf("failed reading input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if IsExit(input) {
			fmt.Fprintln(s.out, Farewell)
			return nil
		}

		if strings.HasPrefix(input, "/") {
			s.command(input)
			continue
		}

		answer, err := s.session.Turn(ctx, input)
		if err != nil {
			s.logger.Warn("turn failed", "error", err)
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}

		fmt.Fprintf(s.out, "%s%s\n", AnswerPrefix, answer)
	}
}

func (s *Shell) command(input string) {
	switch input {
	case "/reset":
		s.session.Memory().Reset()
		fmt.Fprintln(s.out, "Conversación reiniciada.")

	case "/history":
		doc, err := agent.ExportMessagesToYAML(s.session.Memory().Messages())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return
		}
		fmt.Fprint(s.out, doc)

	case "/usage":
		if s.usage == nil {
			fmt.Fprintln(s.out, "usage not tracked for this provider")
			return
		}
		fmt.Fprintln(s.out, s.usage.String())

	default:
		fmt.Fprintf(s.out, "unknown command %s (try /reset, /history, /usage)\n", input)
	}
}
