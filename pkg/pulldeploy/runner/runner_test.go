package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nais/pulldeploy/pkg/pulldeploy/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	stream runner.Stream
	text   string
}

func TestRun(t *testing.T) {
	r := runner.New()

	t.Run("stdout is collected and every line is streamed", func(t *testing.T) {
		var lines []line
		result, err := r.Run(context.Background(), runner.Command{
			Name: "sh",
			Args: []string{"-c", "echo first; echo oops >&2; echo second"},
		}, func(stream runner.Stream, text string) {
			lines = append(lines, line{stream, text})
		})

		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", result.Output)
		assert.Equal(t, 0, result.ExitCode)
		assert.Len(t, lines, 3)
		assert.Contains(t, lines, line{runner.Stderr, "oops"})
		assert.Contains(t, lines, line{runner.Stdout, "second"})
	})

	t.Run("working directory and environment are applied", func(t *testing.T) {
		dir := t.TempDir()
		result, err := r.Run(context.Background(), runner.Command{
			Name: "sh",
			Args: []string{"-c", "pwd; echo $PULLDEPLOY_TEST"},
			Dir:  dir,
			Env:  []string{"PULLDEPLOY_TEST=hello"},
		}, nil)

		require.NoError(t, err)
		assert.Contains(t, result.Output, dir)
		assert.Contains(t, result.Output, "hello\n")
	})

	t.Run("nonzero exit is reported as exit error with output", func(t *testing.T) {
		result, err := r.Run(context.Background(), runner.Command{
			Name: "sh",
			Args: []string{"-c", "echo partial; exit 3"},
		}, nil)

		var exitErr *runner.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.ExitCode)
		assert.Equal(t, "partial\n", result.Output)
		assert.EqualError(t, err, "sh -c echo partial; exit 3 exited with code 3")
	})

	t.Run("missing executable is reported as start error", func(t *testing.T) {
		result, err := r.Run(context.Background(), runner.Command{
			Name: "pulldeploy-this-command-does-not-exist",
		}, nil)

		var startErr *runner.StartError
		require.ErrorAs(t, err, &startErr)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "io error: start pulldeploy-this-command-does-not-exist")
	})

	t.Run("expired context kills the process", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := r.Run(ctx, runner.Command{
			Name: "sleep",
			Args: []string{"10"},
		}, nil)

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("expired context kills processes started by the command", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := r.Run(ctx, runner.Command{
			Name: "sh",
			Args: []string{"-c", "sleep 3 & wait"},
		}, nil)

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("output is kept exactly as written", func(t *testing.T) {
		var lines []string
		result, err := r.Run(context.Background(), runner.Command{
			Name: "sh",
			Args: []string{"-c", `printf 'Already up to date.  \n\nprogress\r\nno newline'`},
		}, func(stream runner.Stream, text string) {
			lines = append(lines, text)
		})

		require.NoError(t, err)
		assert.Equal(t, "Already up to date.  \n\nprogress\r\nno newline", result.Output)
		assert.Equal(t, []string{"Already up to date.", "progress", "no newline"}, lines)
	})
}
