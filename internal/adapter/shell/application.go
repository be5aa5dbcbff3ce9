package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Application is the lifecycle a front end exposes to the Runner.
type Application interface {
	// Init is called once before the first prompt.
	Init(ctx context.Context) error
	// Idle is called before every prompt.
	Idle(ctx context.Context) error
}

// Interactive is an Application that can execute one tokenized command line.
type Interactive interface {
	Application
	Execute(ctx context.Context, args []string) error
}

// ErrPanic is returned for a command that panicked.
var ErrPanic = errors.New("command panicked")

// UsageError reports a malformed command line. The loop keeps running after one.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Runner drives the read-eval-print loop.
type Runner struct {
	out    io.Writer
	prompt string
	logger zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPrompt sets the prompt printed before every line. An empty prompt disables it.
func WithPrompt(prompt string) RunnerOption {
	return func(r *Runner) {
		r.prompt = prompt
	}
}

// WithRunnerLogger sets the logger used for per-command logs.
func WithRunnerLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner that writes prompts and error lines to out.
func NewRunner(out io.Writer, opts ...RunnerOption) *Runner {
	r := &Runner{
		out:    out,
		prompt: "> ",
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run calls app.Init once and then, until EOF, quit/exit or ctx cancellation, calls
// app.Idle, prints the prompt, reads a line and executes it. Command failures are
// printed and do not stop the loop; Init, Idle and read failures do.
func (r *Runner) Run(ctx context.Context, app Interactive, in io.Reader) error {
	if err := app.Init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if err := app.Idle(ctx); err != nil {
			return fmt.Errorf("idle: %w", err)
		}

		if r.prompt != "" {
			fmt.Fprint(r.out, r.prompt)
		}

		var (
			line string
			ok   bool
		)

		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
		}

		if !ok {
			if r.prompt != "" {
				fmt.Fprintln(r.out)
			}
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		}

		args := strings.Fields(line)
		if len(args) == 0 || strings.HasPrefix(args[0], "#") {
			continue
		}

		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}

		r.dispatch(ctx, app, args)
	}
}

// dispatch executes one command, renders its error and logs the outcome.
func (r *Runner) dispatch(ctx context.Context, app Interactive, args []string) {
	start := time.Now()

	err := r.execute(ctx, app, args)

	status := "ok"
	if err != nil {
		status = r.render(err)
	}

	event := r.logger.Debug()
	if errors.Is(err, ErrPanic) {
		event = r.logger.Error()
	}

	event.
		Err(err).
		Str("command", args[0]).
		Str("status", status).
		Dur("duration", time.Since(start)).
		Msg("command completed")
}

func (r *Runner) execute(ctx context.Context, app Interactive, args []string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("error", rec).
				Str("stack", string(debug.Stack())).
				Str("command", args[0]).
				Msg("panic recovered")

			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()

	return app.Execute(ctx, args)
}

// render prints err and returns the status to log.
func (r *Runner) render(err error) string {
	var usage *UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(r.out, "usage: %s\n", usage.Error())
		return "usage"
	}

	fmt.Fprintln(r.out, FormatError(err))

	return "error"
}
