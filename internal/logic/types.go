// Package logic contains the pure demand-response decision engine.
// This package has NO external dependencies (no GPIO, network, OS, or clock).
package logic

import (
	"fmt"

	"github.com/sweeney/dreadpi/internal/fault"
)

// Level is a Demand Response Mode as signalled to the load controller.
// The numeric value is the DRM number.
type Level int

const (
	Unrestricted Level = 0 // DRM0
	Moderate     Level = 2 // DRM2
	Severe       Level = 3 // DRM3
)

// FailSafe is the level forced on any failure.
const FailSafe = Unrestricted

// Levels lists every defined level.
var Levels = []Level{Unrestricted, Moderate, Severe}

// OutputState holds one bit per pin, in configured pin order.
type OutputState [2]int

func (l Level) String() string {
	return fmt.Sprintf("DRM%d", int(l))
}

// Name returns the human-readable mode name.
func (l Level) Name() string {
	switch l {
	case Unrestricted:
		return "unrestricted"
	case Moderate:
		return "moderate"
	case Severe:
		return "severe"
	}
	return "unknown"
}

// PlotValue is the number written to the plot log for this level.
// Consumers graph it as "percent of compressor capacity allowed".
func (l Level) PlotValue() int {
	switch l {
	case Moderate:
		return 50
	case Severe:
		return 75
	}
	return 100
}

// Output returns the pin pattern that signals l.
// Undefined levels map to the fail-safe pattern.
func (l Level) Output() OutputState {
	switch l {
	case Moderate:
		return OutputState{1, 0}
	case Severe:
		return OutputState{0, 1}
	}
	return OutputState{0, 0}
}

// LevelOf maps a pin pattern back to its level.
func LevelOf(s OutputState) (Level, error) {
	switch s {
	case OutputState{0, 0}:
		return Unrestricted, nil
	case OutputState{1, 0}:
		return Moderate, nil
	case OutputState{0, 1}:
		return Severe, nil
	}
	return FailSafe, fmt.Errorf("%w: unknown pin state %v", fault.ErrInvariant, [2]int(s))
}

// Thresholds split the watt axis into the three demand-response bands.
type Thresholds struct {
	Low  int
	High int
}

// Validate checks 0 < Low < High.
func (t Thresholds) Validate() error {
	if t.Low <= 0 {
		return fmt.Errorf("%w: threshold_low must be > 0, got %d", fault.ErrConfiguration, t.Low)
	}
	if t.High <= t.Low {
		return fmt.Errorf("%w: threshold_high (%d) must be greater than threshold_low (%d)", fault.ErrConfiguration, t.High, t.Low)
	}
	return nil
}
