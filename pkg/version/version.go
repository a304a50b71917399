package version

import (
	"strconv"
	"time"
)

// Set at build time with -ldflags "-X github.com/nais/pulldeploy/pkg/version.revision=..."
var (
	revision  = "unknown"
	buildTime = "0"
)

func Version() string {
	return revision
}

// BuildTime parses the UNIX timestamp embedded at build time.
func BuildTime() (time.Time, error) {
	ts, err := strconv.ParseInt(buildTime, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}
