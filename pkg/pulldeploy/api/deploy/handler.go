package api_deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	gh "github.com/google/go-github/v41/github"
	"github.com/google/uuid"
	"github.com/nais/pulldeploy/pkg/pulldeploy/middleware"
	"github.com/nais/pulldeploy/pkg/pulldeploy/pipeline"
	log "github.com/sirupsen/logrus"
)

const (
	// GitHub caps webhook payloads at 25 MB.
	MaxBodySize = 25 << 20

	LogFieldCorrelationID = "correlation_id"
	LogFieldEventType     = "event_type"
	LogFieldRepository    = "repository"

	PingEvent = "ping"
)

// Every status code this handler can respond with.
var StatusCodes = []int{
	http.StatusOK,
	http.StatusBadRequest,
	http.StatusInternalServerError,
}

type Deployer interface {
	Deploy(ctx context.Context, n pipeline.Notification) (pipeline.Outcome, error)
}

type DeploymentHandler struct {
	Deployer Deployer
}

type DeploymentResponse struct {
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlationID,omitempty"`
}

func (r *DeploymentResponse) render(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(r)
}

func (h *DeploymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var deploymentResponse DeploymentResponse

	fields := middleware.RequestLogFields(r)
	logger := log.WithFields(fields)

	deploymentResponse.CorrelationID = gh.DeliveryID(r)
	if len(deploymentResponse.CorrelationID) == 0 {
		requestID, err := uuid.NewRandom()
		if err != nil {
			deploymentResponse.Message = "unable to generate request id"
			deploymentResponse.render(w, http.StatusInternalServerError)
			logger.Errorf("%s: %s", deploymentResponse.Message, err)
			return
		}
		deploymentResponse.CorrelationID = requestID.String()
	}

	eventType := gh.WebHookType(r)
	logger = logger.WithFields(log.Fields{
		LogFieldCorrelationID: deploymentResponse.CorrelationID,
		LogFieldEventType:     eventType,
	})

	logger.Tracef("Incoming request")

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		deploymentResponse.Message = fmt.Sprintf("unable to read request body: %s", err)
		deploymentResponse.render(w, http.StatusBadRequest)
		logger.Error(deploymentResponse.Message)
		return
	}

	if eventType == PingEvent {
		deploymentResponse.Message = "pong"
		deploymentResponse.render(w, http.StatusOK)
		logger.Infof("Received ping from webhook sender")
		return
	}

	event := &gh.PushEvent{}
	if err := json.Unmarshal(data, event); err != nil {
		deploymentResponse.Message = fmt.Sprintf("unable to unmarshal request body: %s", err)
		deploymentResponse.render(w, http.StatusBadRequest)
		logger.Error(deploymentResponse.Message)
		return
	}

	notification := pipeline.Notification{
		Repository:    event.GetRepo().GetName(),
		CorrelationID: deploymentResponse.CorrelationID,
	}

	if len(notification.Repository) == 0 {
		deploymentResponse.Message = "notification does not specify repository.name"
		deploymentResponse.render(w, http.StatusBadRequest)
		logger.Error(deploymentResponse.Message)
		return
	}

	logger = logger.WithField(LogFieldRepository, notification.Repository)
	logger.Tracef("Request has valid JSON")

	// A webhook sender that gives up waiting must not abort a build halfway.
	ctx := context.WithoutCancel(r.Context())

	outcome, err := h.Deployer.Deploy(ctx, notification)
	if err != nil {
		deploymentResponse.Message = err.Error()
		deploymentResponse.render(w, http.StatusInternalServerError)
		logger.Errorf("responding with error: %s", err)
		return
	}

	deploymentResponse.Message = outcome.Message()
	deploymentResponse.render(w, http.StatusOK)

	logger.Infof("Notification processed: %s", outcome.Message())
}
