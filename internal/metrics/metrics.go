// Package metrics exports the outcome of a run as Prometheus gauges in a
// node_exporter textfile.
package metrics

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/sweeney/dreadpi/internal/status"
)

const namespace = "dreadpi"

// Sink holds the run gauges on its own registry.
type Sink struct {
	reg      *prometheus.Registry
	level    prometheus.Gauge
	plot     prometheus.Gauge
	watts    prometheus.Gauge
	failsafe prometheus.Gauge
	lastRun  prometheus.Gauge
	duration prometheus.Gauge
	pins     *prometheus.GaugeVec
}

// NewSink registers the run gauges on reg.
func NewSink(reg *prometheus.Registry) (*Sink, error) {
	s := &Sink{
		reg: reg,
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drm_level",
			Help:      "Demand response mode signalled by the last run (0, 2 or 3; -1 unknown)",
		}),
		plot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_allowed_percent",
			Help:      "Compressor capacity allowed by the signalled mode",
		}),
		watts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "production_watts",
			Help:      "Renewable production reading used by the last run",
		}),
		failsafe: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failsafe",
			Help:      "1 if the last run aborted to the fail-safe mode",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		pins: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_line_value",
			Help:      "Level of each output line after the last run",
		}, []string{"line"}),
	}
	for _, c := range []prometheus.Collector{s.level, s.plot, s.watts, s.failsafe, s.lastRun, s.duration, s.pins} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Record sets every gauge from snap. The watts gauge is withdrawn when the
// run never validated a reading.
func (s *Sink) Record(snap status.Snapshot) {
	if snap.Level != nil {
		s.level.Set(float64(*snap.Level))
		s.plot.Set(float64(snap.Level.PlotValue()))
	} else {
		s.level.Set(-1)
		s.plot.Set(0)
	}
	if snap.Watts != nil {
		s.watts.Set(float64(*snap.Watts))
	} else {
		s.reg.Unregister(s.watts)
	}
	if snap.FailSafe {
		s.failsafe.Set(1)
	} else {
		s.failsafe.Set(0)
	}
	s.lastRun.Set(float64(snap.Now.Unix()))
	if !snap.StartTime.IsZero() {
		s.duration.Set(snap.Duration().Seconds())
	}
	for i, line := range snap.PinOrder {
		s.pins.WithLabelValues(strconv.Itoa(line)).Set(float64(snap.Pins[i]))
	}
}

// Textfile is a node_exporter textfile held open for the whole run.
type Textfile struct {
	f *os.File
}

// OpenTextfile creates or opens path. Writes go through the open handle, so
// they keep working after the process loses the right to create files in the
// collector directory.
func OpenTextfile(path string) (*Textfile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics textfile: %w", err)
	}
	return &Textfile{f: f}, nil
}

// Write records snap on a fresh registry and replaces the file contents with
// it in a single write.
func (t *Textfile) Write(snap status.Snapshot) error {
	reg := prometheus.NewRegistry()
	s, err := NewSink(reg)
	if err != nil {
		return err
	}
	s.Record(snap)

	mfs, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}

	if err := t.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate metrics textfile: %w", err)
	}
	if _, err := t.f.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func (t *Textfile) Close() error {
	return t.f.Close()
}
