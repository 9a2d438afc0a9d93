// Package instance names the running process for logs and lock ownership.
package instance

import "os"

const fallbackID = "local"

// GetID returns ORDERFLOW_INSTANCE_ID, then the platform dyno name, then the
// hostname.
func GetID() string {
	for _, key := range []string{"ORDERFLOW_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
