package instance

import (
	"os"

	"github.com/angelmondragon/packfinderz-inventory/pkg/env"
)

// GetID identifies the running process in logs and lock ownership.
// Platform variables win over the hostname; "local" is the last resort.
func GetID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return env.First(host, "DYNO", "WORKER_ID")
}
