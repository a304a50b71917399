package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "deployment"
	subsystem = "pulldeploy"

	StatusOK    = "ok"
	StatusError = "error"

	LabelOutcome = "outcome"
	LabelStatus  = "status"
	LabelStep    = "step"
	Repository   = "repository"
)

func statusLabel(err error) string {
	if err == nil {
		return StatusOK
	}
	return StatusError
}

// Deployment records the final outcome of one pipeline invocation.
func Deployment(repository, outcome string, t time.Time) {
	labels := prometheus.Labels{
		LabelOutcome: outcome,
		Repository:   repository,
	}
	deployments.With(labels).Inc()
	deployDuration.With(labels).Observe(time.Since(t).Seconds())
}

func Step(step string, t time.Time, err error) {
	stepDuration.With(prometheus.Labels{
		LabelStep:   step,
		LabelStatus: statusLabel(err),
	}).Observe(time.Since(t).Seconds())
}

func AgentReleaseFailed() {
	agentReleaseFailures.Inc()
}

func InProgress(delta float64) {
	inProgress.Add(delta)
}

var (
	deployments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "deployments",
		Help:      "number of deployments, partitioned by outcome",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			LabelOutcome,
			Repository,
		},
	)

	deployDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "deploy_duration_seconds",
		Help:      "time spent in one deployment, from validation to outcome",
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	},
		[]string{
			LabelOutcome,
			Repository,
		},
	)

	stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "step_duration_seconds",
		Help:      "time spent running a single external step",
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 16),
	},
		[]string{
			LabelStep,
			LabelStatus,
		},
	)

	agentReleaseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "agent_release_failures",
		Help:      "number of times an ssh-agent could not be killed after use",
		Namespace: namespace,
		Subsystem: subsystem,
	})

	inProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "in_progress",
		Help:      "number of deployments currently running or waiting for the repository lock",
		Namespace: namespace,
		Subsystem: subsystem,
	})
)

func init() {
	prometheus.MustRegister(deployments)
	prometheus.MustRegister(deployDuration)
	prometheus.MustRegister(stepDuration)
	prometheus.MustRegister(agentReleaseFailures)
	prometheus.MustRegister(inProgress)
}
