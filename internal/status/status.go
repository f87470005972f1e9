// Package status describes the outcome of a dreadpi run, or the latched
// output state, for the state command and the MQTT report.
package status

import (
	"time"

	"github.com/sweeney/dreadpi/internal/logic"
)

// Event names carried in a report.
const (
	EventRun      = "RUN"
	EventFailSafe = "FAILSAFE"
	EventState    = "STATE"
)

// Snapshot is a point-in-time view of one run. It is a value type and is
// filled in progressively; zero fields mean the run did not get that far.
type Snapshot struct {
	Run    string
	Source string

	// PinOrder are the line offsets; Pins their levels at the end of the run.
	PinOrder [2]int
	Pins     [2]int

	// Prior and Level are nil when the pins held an unknown pattern.
	Prior *logic.Level
	Level *logic.Level

	// Watts is nil until a reading has been validated.
	Watts *int

	FailSafe bool
	Err      error

	StartTime time.Time
	Now       time.Time
}

// Duration returns how long the run took.
func (s Snapshot) Duration() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Changed reports whether the run ended on a different level than it found.
func (s Snapshot) Changed() bool {
	if s.Level == nil {
		return false
	}
	return s.Prior == nil || *s.Prior != *s.Level
}

// LevelPtr returns a pointer to a copy of l.
func LevelPtr(l logic.Level) *logic.Level {
	return &l
}
