// Package mqtt publishes the run report with abstraction for testing.
package mqtt

import (
	"github.com/sweeney/dreadpi/internal/status"
)

// DefaultTopic is the MQTT topic for run reports.
const DefaultTopic = "energy/dreadpi/drm"

// Publisher publishes run reports to MQTT.
type Publisher interface {
	// Publish sends the report of a finished run to the broker.
	// Returns error if publishing fails (should not fail the run).
	Publish(snap status.Snapshot) error

	// Close disconnects from the broker.
	Close() error
}

// FormatPayload creates the JSON payload for a run report.
func FormatPayload(snap status.Snapshot) []byte {
	return status.FormatEvent(snap)
}
