package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/nais/pulldeploy/pkg/conftools"
	"github.com/nais/pulldeploy/pkg/pulldeploy/pipeline"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	BaseDirectory  string        `json:"base-directory"`
	BuildCommand   string        `json:"build-command"`
	DeployPath     string        `json:"deploy-path"`
	ListenAddress  string        `json:"listen-address"`
	LogFormat      string        `json:"log-format"`
	LogLevel       string        `json:"log-level"`
	MetricsPath    string        `json:"metrics-path"`
	OtelEndpoint   string        `json:"otel-endpoint"`
	Repository     string        `json:"repository"`
	Service        string        `json:"service"`
	SSHKeys        []string      `json:"ssh-keys"`
	StepTimeout    time.Duration `json:"step-timeout"`
	UpToDateMarker string        `json:"up-to-date-marker"`
}

const (
	BaseDirectory  = "base-directory"
	BuildCommand   = "build-command"
	DeployPath     = "deploy-path"
	ListenAddress  = "listen-address"
	LogFormat      = "log-format"
	LogLevel       = "log-level"
	MetricsPath    = "metrics-path"
	OtelEndpoint   = "otel-endpoint"
	Repository     = "repository"
	Service        = "service"
	SSHKeys        = "ssh-keys"
	StepTimeout    = "step-timeout"
	UpToDateMarker = "up-to-date-marker"
)

// Bind standard environment variables understood by other tools.
func bindStandard() {
	viper.BindEnv(OtelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func Initialize() *Config {
	conftools.Initialize("pulldeploy")
	bindStandard()

	flag.String(Repository, "", "Name of the repository this agent deploys. Notifications for other repositories are rejected.")
	flag.String(Service, "", "Name of the systemd unit restarted after a successful build.")
	flag.String(BaseDirectory, pipeline.DefaultBaseDirectory, "Directory containing the repository checkout, in a subdirectory named after the repository.")
	flag.String(BuildCommand, strings.Join(pipeline.DefaultBuildCommand, " "), "Command used to build the service, run in the repository checkout. Arguments containing spaces must be quoted.")
	flag.String(UpToDateMarker, pipeline.DefaultUpToDateMarker, "Text in 'git pull' output meaning nothing new was fetched.")
	flag.Duration(StepTimeout, 0, "Abort a pipeline step that runs longer than this. Zero means no limit.")
	flag.StringSlice(SSHKeys, nil, "Private keys to load into the ssh-agent used for pulling, comma separated.")

	flag.String(ListenAddress, "127.0.0.1:8080", "IP:PORT")
	flag.String(DeployPath, "/deploy", "HTTP endpoint receiving repository notifications.")
	flag.String(MetricsPath, "/metrics", "HTTP endpoint for exposed metrics.")
	flag.String(LogFormat, "text", "Log format, either 'json' or 'text'.")
	flag.String(LogLevel, "info", "Logging verbosity level.")
	flag.String(OtelEndpoint, "", "OpenTelemetry collector endpoint URL. Tracing is disabled when empty.")

	return &Config{}
}

func (cfg *Config) Validate() error {
	if len(cfg.Repository) == 0 {
		return fmt.Errorf("no repository specified; try --%s", Repository)
	}
	if len(cfg.Service) == 0 {
		return fmt.Errorf("no service specified; try --%s", Service)
	}
	args, err := cfg.BuildArgs()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("build command must not be empty")
	}
	if cfg.StepTimeout < 0 {
		return fmt.Errorf("step timeout must not be negative")
	}
	return nil
}

// BuildArgs splits the build command into arguments, honoring shell quoting.
func (cfg *Config) BuildArgs() ([]string, error) {
	args, err := shlex.Split(cfg.BuildCommand)
	if err != nil {
		return nil, fmt.Errorf("parse build command: %w", err)
	}
	return args, nil
}

// Pipeline returns the settings of the deploy pipeline. The build command must have passed Validate.
func (cfg *Config) Pipeline() pipeline.Config {
	buildArgs, _ := cfg.BuildArgs()

	return pipeline.Config{
		Repository:     cfg.Repository,
		Service:        cfg.Service,
		BaseDirectory:  cfg.BaseDirectory,
		BuildCommand:   buildArgs,
		UpToDateMarker: cfg.UpToDateMarker,
		StepTimeout:    cfg.StepTimeout,
		SSHKeys:        cfg.SSHKeys,
	}
}
