// Package sshagent starts short-lived ssh-agent processes that hold the keys needed to pull source code.
package sshagent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/nais/pulldeploy/pkg/pulldeploy/runner"
	log "github.com/sirupsen/logrus"
)

const (
	EnvAuthSock = "SSH_AUTH_SOCK"
	EnvAgentPID = "SSH_AGENT_PID"
)

var ErrStartFailed = errors.New("unable to start ssh agent")

var (
	pidPattern  = regexp.MustCompile(`SSH_AGENT_PID=(\d+)`)
	sockPattern = regexp.MustCompile(`SSH_AUTH_SOCK=([^;\s]+)`)
)

type Agent struct {
	runner runner.Runner
	keys   []string
}

type Handle struct {
	PID        int
	AuthSocket string

	runner runner.Runner
	once   sync.Once
	err    error
}

func New(r runner.Runner, keys []string) *Agent {
	return &Agent{
		runner: r,
		keys:   keys,
	}
}

// Acquire starts ssh-agent in shell output mode and loads the configured keys into it.
// The returned handle must be released by the caller.
func (a *Agent) Acquire(ctx context.Context) (*Handle, error) {
	logger := log.WithField("step", "ssh-agent")

	result, err := a.runner.Run(ctx, runner.Command{
		Name: "ssh-agent",
		Args: []string{"-s"},
	}, logLines(logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	handle, err := parse(result.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	handle.runner = a.runner

	logger.Debugf("ssh-agent running with pid %d", handle.PID)

	for _, key := range a.keys {
		_, err = a.runner.Run(ctx, runner.Command{
			Name: "ssh-add",
			Args: []string{key},
			Env:  handle.Env(),
		}, logLines(logger.WithField("step", "ssh-add")))
		if err != nil {
			if rerr := handle.Release(ctx); rerr != nil {
				logger.Errorf("release ssh-agent after failed ssh-add: %s", rerr)
			}
			return nil, fmt.Errorf("%w: add key %s: %w", ErrStartFailed, key, err)
		}
	}

	return handle, nil
}

// Env returns the variables a process needs to talk to this agent.
func (h *Handle) Env() []string {
	env := []string{fmt.Sprintf("%s=%d", EnvAgentPID, h.PID)}
	if h.AuthSocket != "" {
		env = append(env, fmt.Sprintf("%s=%s", EnvAuthSock, h.AuthSocket))
	}
	return env
}

// Release kills the agent process. Only the first call has any effect;
// subsequent calls return the result of the first one.
func (h *Handle) Release(ctx context.Context) error {
	h.once.Do(func() {
		// The agent must die even if the deployment ran out of time.
		ctx = context.WithoutCancel(ctx)
		_, err := h.runner.Run(ctx, runner.Command{
			Name: "kill",
			Args: []string{"-9", strconv.Itoa(h.PID)},
		}, logLines(log.WithField("step", "ssh-agent-kill")))
		if err != nil {
			h.err = fmt.Errorf("kill ssh-agent with pid %d: %w", h.PID, err)
		}
	})
	return h.err
}

func parse(output string) (*Handle, error) {
	match := pidPattern.FindStringSubmatch(output)
	if match == nil {
		return nil, fmt.Errorf("no %s in output", EnvAgentPID)
	}

	pid, err := strconv.Atoi(match[1])
	if err != nil || pid <= 0 {
		return nil, fmt.Errorf("invalid %s '%s'", EnvAgentPID, match[1])
	}

	handle := &Handle{PID: pid}
	if match = sockPattern.FindStringSubmatch(output); match != nil {
		handle.AuthSocket = match[1]
	}

	return handle, nil
}

func logLines(logger *log.Entry) runner.LineHandler {
	return func(stream runner.Stream, line string) {
		logger.WithField("stream", stream).Debug(line)
	}
}
