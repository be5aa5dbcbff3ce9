package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/memledger/internal/domain"
)

type fakeApp struct {
	initErr  error
	idleErr  error
	inits    int
	idles    int
	executed [][]string
	execute  func(args []string) error
}

func (f *fakeApp) Init(context.Context) error {
	f.inits++
	return f.initErr
}

func (f *fakeApp) Idle(context.Context) error {
	f.idles++
	return f.idleErr
}

func (f *fakeApp) Execute(_ context.Context, args []string) error {
	f.executed = append(f.executed, args)
	if f.execute != nil {
		return f.execute(args)
	}
	return nil
}

func TestRunner_Run(t *testing.T) {
	app := &fakeApp{}
	out := &bytes.Buffer{}
	runner := NewRunner(out, WithPrompt(""))

	input := "deposit a 10\n\n# comment\n  balance   a  \n"
	require.NoError(t, runner.Run(context.Background(), app, strings.NewReader(input)))

	assert.Equal(t, 1, app.inits)
	assert.Equal(t, [][]string{{"deposit", "a", "10"}, {"balance", "a"}}, app.executed)
	// One Idle per prompt, including the one that hits EOF.
	assert.Equal(t, 5, app.idles)
	assert.Empty(t, out.String())
}

func TestRunner_StopsOnQuit(t *testing.T) {
	for _, word := range []string{"quit", "exit"} {
		t.Run(word, func(t *testing.T) {
			app := &fakeApp{}
			runner := NewRunner(io.Discard)

			require.NoError(t, runner.Run(context.Background(), app, strings.NewReader("check\n"+word+"\ncheck\n")))
			assert.Len(t, app.executed, 1)
		})
	}
}

func TestRunner_PrintsPrompt(t *testing.T) {
	out := &bytes.Buffer{}
	runner := NewRunner(out, WithPrompt("bank> "))

	require.NoError(t, runner.Run(context.Background(), &fakeApp{}, strings.NewReader("check\n")))
	assert.Equal(t, "bank> bank> \n", out.String())
}

func TestRunner_RendersErrorsAndContinues(t *testing.T) {
	app := &fakeApp{
		execute: func(args []string) error {
			switch args[0] {
			case "balance":
				return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, args[1])
			case "bogus":
				return &UsageError{Err: errors.New(`unknown command "bogus"`)}
			case "explode":
				panic("kaboom")
			}
			return nil
		},
	}
	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	runner := NewRunner(out, WithPrompt(""), WithRunnerLogger(zerolog.New(logs).Level(zerolog.DebugLevel)))

	input := "balance nope\nbogus\nexplode\ncheck\n"
	require.NoError(t, runner.Run(context.Background(), app, strings.NewReader(input)))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "error AccountNotFound: account not found: nope", lines[0])
	assert.Equal(t, `usage: unknown command "bogus"`, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "error Internal: command panicked: kaboom"), lines[2])

	assert.Len(t, app.executed, 4)
	assert.Contains(t, logs.String(), `"message":"panic recovered"`)
	assert.Contains(t, logs.String(), `"status":"usage"`)
	assert.Equal(t, 4, strings.Count(logs.String(), `"message":"command completed"`))
}

func TestRunner_InitFailure(t *testing.T) {
	app := &fakeApp{initErr: errors.New("bad config")}

	err := NewRunner(io.Discard).Run(context.Background(), app, strings.NewReader("check\n"))
	require.ErrorContains(t, err, "bad config")
	assert.Empty(t, app.executed)
	assert.Zero(t, app.idles)
}

func TestRunner_IdleFailure(t *testing.T) {
	app := &fakeApp{idleErr: errors.New("disk full")}

	err := NewRunner(io.Discard).Run(context.Background(), app, strings.NewReader("check\n"))
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, app.executed)
}

func TestRunner_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The pipe never delivers a line, so only cancellation can end the loop.
	reader, writer := io.Pipe()
	defer writer.Close()

	done := make(chan error, 1)
	go func() {
		done <- NewRunner(io.Discard).Run(ctx, &fakeApp{}, reader)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunner_ReadError(t *testing.T) {
	readErr := errors.New("tty gone")
	reader := io.MultiReader(strings.NewReader("check\n"), &failingReader{err: readErr})

	app := &fakeApp{}
	err := NewRunner(io.Discard).Run(context.Background(), app, reader)
	require.ErrorIs(t, err, readErr)
	assert.Len(t, app.executed, 1)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
