package logging_test

import (
	"testing"

	"github.com/nais/pulldeploy/pkg/logging"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(logging.TextFormatter())

	assert.NoError(t, logging.Setup("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.NoError(t, logging.Setup("warning", "text"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)

	assert.EqualError(t, logging.Setup("debug", "xml"), "log format 'xml' is not recognized")
	assert.EqualError(t, logging.Setup("loud", "text"), "while setting log level: not a valid logrus Level: \"loud\"")
}
