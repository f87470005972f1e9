package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	DRM DRMInner `json:"drm"`
}

// DRMInner contains the status details.
type DRMInner struct {
	Event      string    `json:"event"`
	Reason     string    `json:"reason,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Level      string    `json:"level"`
	Mode       string    `json:"mode"`
	PlotValue  int       `json:"plot_value,omitempty"`
	Prior      string    `json:"prior_level,omitempty"`
	Changed    bool      `json:"changed"`
	Pins       []PinJSON `json:"pins"`
	Watts      *int      `json:"watts,omitempty"`
	Source     string    `json:"source,omitempty"`
	Run        string    `json:"run,omitempty"`
	StartTime  string    `json:"start_time,omitempty"`
	Timestamp  string    `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}

// PinJSON is one output line and its level.
type PinJSON struct {
	Line  int `json:"line"`
	Value int `json:"value"`
}

func levelNames(l *logic.Level) (level, mode string) {
	if l == nil {
		return "UNKNOWN", "unknown"
	}
	return l.String(), l.Name()
}

func buildInner(snap Snapshot, event string) DRMInner {
	level, mode := levelNames(snap.Level)
	inner := DRMInner{
		Event:     event,
		Level:     level,
		Mode:      mode,
		Changed:   snap.Changed(),
		Watts:     snap.Watts,
		Source:    snap.Source,
		Run:       snap.Run,
		Timestamp: snap.Now.UTC().Format(time.RFC3339),
		Pins: []PinJSON{
			{Line: snap.PinOrder[0], Value: snap.Pins[0]},
			{Line: snap.PinOrder[1], Value: snap.Pins[1]},
		},
	}
	if snap.Level != nil {
		inner.PlotValue = snap.Level.PlotValue()
	}
	if snap.Prior != nil {
		inner.Prior = snap.Prior.String()
	}
	if !snap.StartTime.IsZero() {
		inner.StartTime = snap.StartTime.UTC().Format(time.RFC3339)
		inner.DurationMs = snap.Duration().Milliseconds()
	}
	if snap.Err != nil {
		inner.Reason = snap.Err.Error()
		inner.ErrorKind = fault.Kind(snap.Err)
	}
	return inner
}

// EventOf names the event a run snapshot represents.
func EventOf(snap Snapshot) string {
	if snap.FailSafe {
		return EventFailSafe
	}
	return EventRun
}

// FormatJSON returns indented JSON of the latched state, for the terminal.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{DRM: buildInner(snap, EventState)}, "", "  ")
	return data
}

// FormatEvent returns compact JSON of a run for the MQTT report.
func FormatEvent(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{DRM: buildInner(snap, EventOf(snap))})
	return data
}
