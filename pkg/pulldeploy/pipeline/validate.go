package pipeline

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

const DefaultUpToDateMarker = "Already up to date."

type Notification struct {
	Repository string
	// Identifies the delivery in logs and traces; not used for validation.
	CorrelationID string
}

// Validate accepts only notifications about the repository this agent serves.
func Validate(cfg Config, n Notification) error {
	log.Debugf("Notification for repository '%s', configured repository is '%s'", n.Repository, cfg.Repository)
	if n.Repository != cfg.Repository {
		return &Error{
			Kind:       WrongRepository,
			Repository: n.Repository,
		}
	}
	return nil
}

// AlreadyUpToDate reports whether git pull output says nothing new was fetched.
func AlreadyUpToDate(output, marker string) bool {
	return strings.Contains(output, marker)
}
