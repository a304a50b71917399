package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	initialScannerBufferSize = 4096
	maxScannerBufferSize     = 10 * 1024 * 1024

	// How long to wait for output to end after the command has been killed.
	pipeCloseDelay = 5 * time.Second
)

type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineHandler receives every output line of a running command as soon as it is read.
type LineHandler func(stream Stream, line string)

type Command struct {
	Name string
	Args []string
	Dir  string
	// Extra environment variables, appended to the environment of this process.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type Result struct {
	// Standard output of the command, exactly as written.
	Output   string
	ExitCode int
}

// StartError means the process could not be spawned at all.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("io error: start %s: %s", e.Command, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// ExitError means the process ran, but did not exit successfully.
type ExitError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type Runner interface {
	Run(ctx context.Context, cmd Command, handler LineHandler) (*Result, error)
}

type execRunner struct{}

// New returns a Runner that spawns real processes.
func New() Runner {
	return &execRunner{}
}

func (r *execRunner) Run(ctx context.Context, command Command, handler LineHandler) (*Result, error) {
	if handler == nil {
		handler = func(Stream, string) {}
	}

	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Command: command.String(), Err: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &StartError{Command: command.String(), Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Command: command.String(), Err: err}
	}

	var buf bytes.Buffer
	var mu sync.Mutex
	var wg sync.WaitGroup
	streamErrs := make(chan error, 2)

	collect := func(stream Stream, chunk string) {
		mu.Lock()
		defer mu.Unlock()
		if stream == Stdout {
			buf.WriteString(chunk)
		}
		for _, line := range displayLines(chunk) {
			handler(stream, line)
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := streamLines(stdout, Stdout, collect); err != nil {
			streamErrs <- fmt.Errorf("stdout: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := streamLines(stderr, Stderr, collect); err != nil {
			streamErrs <- fmt.Errorf("stderr: %w", err)
		}
	}()

	// A process that left its group can keep the pipes open after the kill.
	drained := make(chan struct{})
	go func() {
		select {
		case <-drained:
		case <-ctx.Done():
			select {
			case <-drained:
			case <-time.After(pipeCloseDelay):
				_ = stdout.Close()
				_ = stderr.Close()
			}
		}
	}()

	// Pipes must be drained before Wait closes them.
	wg.Wait()
	close(drained)
	waitErr := cmd.Wait()
	close(streamErrs)

	result := &Result{
		Output:   buf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if waitErr != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%s: %w", command, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return result, &ExitError{Command: command.String(), ExitCode: result.ExitCode, Err: waitErr}
		}
		return result, &StartError{Command: command.String(), Err: waitErr}
	}

	if err, ok := <-streamErrs; ok {
		return result, fmt.Errorf("read output of %s: %w", command, err)
	}

	return result, nil
}

func streamLines(r io.Reader, stream Stream, collect func(stream Stream, chunk string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialScannerBufferSize), maxScannerBufferSize)
	scanner.Split(scanRawLines)

	for scanner.Scan() {
		collect(stream, scanner.Text())
	}

	err := scanner.Err()
	if err != nil {
		// Keep the child from blocking on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
	return err
}

// scanRawLines splits like bufio.ScanLines, but keeps line endings so the output can be reassembled byte for byte.
func scanRawLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// displayLines turns a chunk of raw output into the lines worth logging.
func displayLines(chunk string) []string {
	// Progress meters rewrite the line with carriage returns.
	text := strings.ReplaceAll(chunk, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
