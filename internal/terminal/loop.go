package terminal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/observability"
)

// State is the interactive loop's position.
type State int

const (
	// AwaitingInput waits for the next line.
	AwaitingInput State = iota
	// ExecutingCommand handles a slash command.
	ExecutingCommand
	// RoutingTurn sends user text through the conversation.
	RoutingTurn
	// Finished means the session was flushed and the loop returned.
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case ExecutingCommand:
		return "executing_command"
	case RoutingTurn:
		return "routing_turn"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	// Provider and Model are shown by /status.
	Provider string
	Model    string

	// Prompt prints the input frame before each read.
	Prompt bool
}

// Loop drives one conversation from a line-oriented reader.
type Loop struct {
	conv      *domain.Conversation
	presenter *Presenter
	in        io.Reader
	opts      LoopOptions
	state     State
}

// NewLoop creates an interactive loop.
func NewLoop(conv *domain.Conversation, presenter *Presenter, in io.Reader, opts LoopOptions) *Loop {
	return &Loop{
		conv:      conv,
		presenter: presenter,
		in:        in,
		opts:      opts,
		state:     AwaitingInput,
	}
}

// State returns the current loop state.
func (l *Loop) State() State {
	return l.state
}

// Send routes one message and prints the reply.
func (l *Loop) Send(ctx context.Context, text string) error {
	l.state = RoutingTurn
	response, err := l.conv.Turn(ctx, text)
	if response != nil {
		l.presenter.Response(response)
	}
	return err
}

// Run reads lines until exit, EOF or ctx cancellation.
// The session is flushed on every exit path.
func (l *Loop) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	lines := readLines(l.in, done)
	logger := observability.FromContext(ctx)

	l.presenter.Hint("Type 'exit' to quit.")

	for {
		l.state = AwaitingInput
		if l.opts.Prompt {
			l.presenter.Prompt()
		}

		var line string
		select {
		case <-ctx.Done():
			l.presenter.Newline()
			return l.finish(ctx)
		case next, ok := <-lines:
			if !ok {
				if l.opts.Prompt {
					l.presenter.Newline()
				}
				return l.finish(ctx)
			}
			line = next
		}

		text := strings.TrimSpace(line)
		switch {
		case isExit(text):
			return l.finish(ctx)
		case isCommand(text):
			l.state = ExecutingCommand
			l.command(text)
			continue
		}

		if err := l.Send(ctx, text); err != nil {
			if ctx.Err() != nil {
				l.presenter.Newline()
				return l.finish(ctx)
			}
			logger.Debug("turn failed", zap.Error(err))
			l.state = Finished
			return err
		}
	}
}

func (l *Loop) command(text string) {
	switch text {
	case "/help":
		l.presenter.Help()
	case "/provider":
		l.presenter.Routing(l.conv.RouteSummary())
	case "/session":
		l.presenter.CurrentSession(l.conv.Session().ID)
	case "/status":
		l.presenter.Status(l.opts.Provider, l.opts.Model)
	}
}

// isCommand matches the slash commands; any other text is a turn.
func isCommand(text string) bool {
	switch text {
	case "/help", "/provider", "/session", "/status":
		return true
	}
	return false
}

// finish persists the session even when ctx is already cancelled.
func (l *Loop) finish(ctx context.Context) error {
	l.state = Finished

	if err := l.conv.Flush(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	id := l.conv.Session().ID
	l.presenter.Saved(id)
	l.presenter.ResumeHint(id)
	return nil
}

func isExit(text string) bool {
	switch strings.ToLower(text) {
	case "exit", "quit":
		return true
	}
	return false
}

// readLines feeds lines from r into a channel that closes on EOF or read error.
// A goroutine blocked inside r.Read outlives done until the read returns.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
			observability.FromContext(context.Background()).Warn("input read failed", zap.Error(err))
		}
	}()

	return lines
}
