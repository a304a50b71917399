package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nais/pulldeploy/pkg/conftools"
	"github.com/nais/pulldeploy/pkg/logging"
	"github.com/nais/pulldeploy/pkg/pulldeploy/api"
	"github.com/nais/pulldeploy/pkg/pulldeploy/config"
	"github.com/nais/pulldeploy/pkg/pulldeploy/pipeline"
	"github.com/nais/pulldeploy/pkg/pulldeploy/runner"
	"github.com/nais/pulldeploy/pkg/telemetry"
	"github.com/nais/pulldeploy/pkg/version"
)

var maskedConfig = []string{
	config.SSHKeys,
}

const (
	// Running deployments get this long to finish after a shutdown signal.
	shutdownTimeout = 5 * time.Minute
)

func run() error {
	cfg := config.Initialize()
	err := conftools.Load(cfg)
	if err != nil {
		return err
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	// Welcome
	log.Infof("pulldeploy %s", version.Version())
	ts, err := version.BuildTime()
	if err == nil {
		log.Infof("This version was built %s", ts.Local())
	}

	for _, line := range conftools.Format(maskedConfig) {
		log.Info(line)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if len(cfg.OtelEndpoint) > 0 {
		tp, err := telemetry.New(context.Background(), "pulldeploy", cfg.OtelEndpoint)
		if err != nil {
			return fmt.Errorf("set up tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Errorf("flush traces: %s", err)
			}
		}()
		log.Infof("Sending traces to %s", cfg.OtelEndpoint)
	}

	deployPipeline := pipeline.New(cfg.Pipeline(), runner.New())
	log.Infof("Serving deployments for %s", cfg.Pipeline())

	router := api.New(api.Config{
		Deployer:    deployPipeline,
		DeployPath:  cfg.DeployPath,
		MetricsPath: cfg.MetricsPath,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	log.Infof("Ready to accept connections on %s", cfg.ListenAddress)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("http server: %w", err)
	case sig := <-signals:
		log.Infof("Received signal %s (%d), exiting...", sig, sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(ctx)
}

func main() {
	err := run()
	if err != nil {
		log.Errorf("Fatal error: %s", err)
		os.Exit(1)
	}
}
