package instance

import (
	"os"

	"github.com/okabe-dev/bidhouse-backend/pkg/env"
)

// GetID identifies the running process in worker logs. It prefers an explicit
// BIDHOUSE_INSTANCE_ID, then the container hostname, then a fixed default.
func GetID() string {
	if id := env.Get("BIDHOUSE_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "bidhouse-0"
}
