package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nais/pulldeploy/pkg/pulldeploy/metrics"
	"github.com/nais/pulldeploy/pkg/pulldeploy/runner"
	"github.com/nais/pulldeploy/pkg/pulldeploy/sshagent"
	"github.com/nais/pulldeploy/pkg/telemetry"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otrace "go.opentelemetry.io/otel/trace"
)

const (
	LogFieldCorrelationID = "correlation_id"
	LogFieldRepository    = "repository"
	LogFieldService       = "service"
	LogFieldStep          = "step"
	LogFieldStream        = "stream"

	StepAgent   = "ssh-agent"
	StepPull    = "pull"
	StepBuild   = "build"
	StepRestart = "restart"
)

const DefaultBaseDirectory = "/var/www"

var DefaultBuildCommand = []string{"cargo", "build", "--release"}

type Outcome int

const (
	Failed Outcome = iota
	Skipped
	Deployed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Deployed:
		return "deployed"
	default:
		return "failed"
	}
}

// Message is the human-readable result reported back to whoever sent the notification.
func (o Outcome) Message() string {
	switch o {
	case Skipped:
		return "Already up to date"
	case Deployed:
		return "Deployed"
	default:
		return "Failed"
	}
}

type Config struct {
	Repository     string
	Service        string
	BaseDirectory  string
	BuildCommand   []string
	UpToDateMarker string
	// Zero means steps may run forever.
	StepTimeout time.Duration
	SSHKeys     []string
}

type Pipeline struct {
	cfg    Config
	runner runner.Runner
	agent  *sshagent.Agent
	locker *Locker
}

func New(cfg Config, r runner.Runner) *Pipeline {
	if cfg.BaseDirectory == "" {
		cfg.BaseDirectory = DefaultBaseDirectory
	}
	if len(cfg.BuildCommand) == 0 {
		cfg.BuildCommand = DefaultBuildCommand
	}
	if cfg.UpToDateMarker == "" {
		cfg.UpToDateMarker = DefaultUpToDateMarker
	}
	cfg.BuildCommand = append([]string(nil), cfg.BuildCommand...)
	cfg.SSHKeys = append([]string(nil), cfg.SSHKeys...)

	return &Pipeline{
		cfg:    cfg,
		runner: r,
		agent:  sshagent.New(r, cfg.SSHKeys),
		locker: NewLocker(),
	}
}

// Directory is where the source code of the configured repository is checked out.
func (p *Pipeline) Directory() string {
	return filepath.Join(p.cfg.BaseDirectory, p.cfg.Repository)
}

// Deploy brings the configured service up to date with its repository.
// A Failed outcome is always accompanied by a *Error.
func (p *Pipeline) Deploy(ctx context.Context, n Notification) (Outcome, error) {
	start := time.Now()

	logger := log.WithFields(log.Fields{
		LogFieldCorrelationID: n.CorrelationID,
		LogFieldRepository:    n.Repository,
		LogFieldService:       p.cfg.Service,
	})

	ctx, span := telemetry.Tracer().Start(ctx, "deploy", otrace.WithAttributes(
		attribute.String("repository", n.Repository),
		attribute.String("service", p.cfg.Service),
		attribute.String("correlation_id", n.CorrelationID),
	))
	defer span.End()

	outcome, err := p.deploy(ctx, logger, n)

	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Errorf("Deployment failed: %s", err)
	} else {
		logger.Infof("Deployment finished: %s", outcome.Message())
	}

	metrics.Deployment(p.cfg.Repository, outcome.String(), start)

	return outcome, err
}

func (p *Pipeline) deploy(ctx context.Context, logger *log.Entry, n Notification) (Outcome, error) {
	err := Validate(p.cfg, n)
	if err != nil {
		return Failed, err
	}

	dir := p.Directory()

	metrics.InProgress(1)
	defer metrics.InProgress(-1)

	logger.Debugf("Waiting for lock on %s", dir)
	unlock := p.locker.Lock(dir)
	defer unlock()

	logger.Infof("Deploying %s in %s", n.Repository, dir)

	var handle *sshagent.Handle
	err = p.step(ctx, logger, StepAgent, func(ctx context.Context) error {
		var err error
		handle, err = p.agent.Acquire(ctx)
		return err
	})
	if err != nil {
		return Failed, p.failure(AgentStartFailed, StepAgent, err)
	}

	release := func() {
		err := handle.Release(ctx)
		if err != nil {
			metrics.AgentReleaseFailed()
			logger.Errorf("Unable to release ssh-agent: %s", err)
		}
	}
	// Releasing twice is a no-op, so this only matters for the early returns.
	defer release()

	pull, err := p.run(ctx, logger, StepPull, runner.Command{
		Name: "git",
		Args: []string{"pull"},
		Dir:  dir,
		Env:  handle.Env(),
	})
	if err != nil {
		return Failed, p.failure(PullFailed, StepPull, err)
	}

	if AlreadyUpToDate(pull.Output, p.cfg.UpToDateMarker) {
		return Skipped, nil
	}

	// Credentials are only needed for pulling.
	release()

	_, err = p.run(ctx, logger, StepBuild, runner.Command{
		Name: p.cfg.BuildCommand[0],
		Args: p.cfg.BuildCommand[1:],
		Dir:  dir,
	})
	if err != nil {
		return Failed, p.failure(BuildFailed, StepBuild, err)
	}

	_, err = p.run(ctx, logger, StepRestart, runner.Command{
		Name: "systemctl",
		Args: []string{"restart", p.cfg.Service},
	})
	if err != nil {
		return Failed, p.failure(RestartFailed, StepRestart, err)
	}

	return Deployed, nil
}

func (p *Pipeline) failure(kind ErrorKind, step string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		if p.cfg.StepTimeout > 0 {
			return Errorf(Timeout, "%s timed out after %s: %w", step, p.cfg.StepTimeout, err)
		}
		return Errorf(Timeout, "%s timed out: %w", step, err)
	}

	switch kind {
	case AgentStartFailed:
		return &Error{Kind: kind, Err: err}
	case PullFailed:
		return Errorf(kind, "git pull failed: %w", err)
	case BuildFailed:
		return Errorf(kind, "build failed: %w", err)
	case RestartFailed:
		return Errorf(kind, "restart of service '%s' failed: %w", p.cfg.Service, err)
	default:
		return Errorf(kind, "%s: %w", step, err)
	}
}

// run executes one external command as a pipeline step, forwarding its output to the log as it arrives.
func (p *Pipeline) run(ctx context.Context, logger *log.Entry, step string, cmd runner.Command) (*runner.Result, error) {
	var result *runner.Result

	stepLogger := logger.WithField(LogFieldStep, step)
	err := p.step(ctx, logger, step, func(ctx context.Context) error {
		var err error
		stepLogger.Infof("Running '%s'", cmd)
		result, err = p.runner.Run(ctx, cmd, func(stream runner.Stream, line string) {
			stepLogger.WithField(LogFieldStream, stream).Info(line)
		})
		return err
	})

	return result, err
}

// step runs fn with the step timeout applied, and reports how it went.
func (p *Pipeline) step(ctx context.Context, logger *log.Entry, step string, fn func(ctx context.Context) error) error {
	start := time.Now()

	ctx, span := telemetry.Tracer().Start(ctx, step)
	defer span.End()

	if p.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.StepTimeout)
		defer cancel()
	}

	err := fn(ctx)

	metrics.Step(step, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithField(LogFieldStep, step).Errorf("Step failed after %s: %s", time.Since(start).Round(time.Millisecond), err)
		return err
	}

	logger.WithField(LogFieldStep, step).Debugf("Step finished in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func (cfg Config) String() string {
	return fmt.Sprintf("repository=%s service=%s directory=%s", cfg.Repository, cfg.Service, filepath.Join(cfg.BaseDirectory, cfg.Repository))
}
