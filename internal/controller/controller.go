// Package controller runs one demand-response cycle: read the latched
// output state, fetch a production reading as an unprivileged process,
// decide the level and drive the output lines. Any error is handed back to
// the caller, which applies FailSafe.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dreadpi/internal/gpio"
	"github.com/sweeney/dreadpi/internal/logic"
	"github.com/sweeney/dreadpi/internal/source"
	"github.com/sweeney/dreadpi/internal/status"
	"github.com/sweeney/dreadpi/internal/supervisor"
)

// Dropper reduces the process identity, at most once.
type Dropper interface {
	Drop() (*supervisor.Unprivileged, error)
}

// Recorder keeps the plot log.
type Recorder interface {
	Record(l logic.Level)
}

// Options wires a Controller. Pins, PinOrder, Plot and Log are enough for
// State and FailSafe; Run needs everything.
type Options struct {
	Pins     gpio.Pins
	PinOrder [2]int

	Thresholds logic.Thresholds
	Freshness  time.Duration

	// NewSource validates the credentials of the configured source.
	NewSource func() (source.Source, error)
	Dropper   Dropper

	Plot  Recorder
	Log   logrus.FieldLogger
	RunID string

	// Now defaults to time.Now.
	Now func() time.Time
}

type Controller struct {
	opts Options
	now  func() time.Time

	mu         sync.Mutex
	failedSafe bool
}

func New(opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{opts: opts, now: now}
}

// Run performs one cycle. The returned snapshot holds whatever the run
// learnt before it stopped, so a caller applying FailSafe can report it.
func (c *Controller) Run(ctx context.Context) (status.Snapshot, error) {
	log := c.opts.Log
	snap := status.Snapshot{
		Run:       c.opts.RunID,
		PinOrder:  c.opts.PinOrder,
		StartTime: c.now(),
	}
	finish := func(err error) (status.Snapshot, error) {
		snap.Now = c.now()
		return snap, err
	}

	before, err := c.opts.Pins.Read()
	if err != nil {
		return finish(fmt.Errorf("read output state: %w", err))
	}
	snap.Pins = before
	prior, err := logic.LevelOf(before)
	if err != nil {
		return finish(err)
	}
	snap.Prior = status.LevelPtr(prior)
	log.Debugf("output lines %v hold %s", before, prior)

	src, err := c.opts.NewSource()
	if err != nil {
		return finish(err)
	}
	snap.Source = src.Kind().String()

	token, err := c.opts.Dropper.Drop()
	if err != nil {
		return finish(err)
	}
	log.WithFields(logrus.Fields{"uid": token.UID(), "gid": token.GID()}).Debug("privileges dropped")

	reading, err := src.Fetch(ctx, token)
	if err != nil {
		return finish(err)
	}

	watts, err := logic.ParseWatts(reading.Watts)
	if err != nil {
		return finish(err)
	}
	snap.Watts = &watts

	if err := supervisor.CheckFreshness(reading.Timestamp, c.now(), c.opts.Freshness, log); err != nil {
		return finish(err)
	}

	next, err := logic.Decide(watts, c.opts.Thresholds)
	if err != nil {
		return finish(err)
	}
	if err := c.opts.Pins.Write(next.Output()); err != nil {
		return finish(fmt.Errorf("write output state: %w", err))
	}
	c.opts.Plot.Record(next)
	log.WithField("watts", watts).Infof("signalling %s (%s)", next, next.Name())

	after, err := c.opts.Pins.Read()
	if err != nil {
		return finish(fmt.Errorf("read back output state: %w", err))
	}
	snap.Pins = after
	confirmed, err := logic.LevelOf(after)
	if err != nil {
		return finish(err)
	}
	snap.Level = status.LevelPtr(confirmed)

	if confirmed != next {
		log.Warnf("wrote %v but output lines read back %v", [2]int(next.Output()), after)
	}
	if confirmed != prior {
		log.Infof("DRM changed from %s to %s", prior, confirmed)
	}
	return finish(nil)
}

// FailSafe drives the output lines to the fail-safe level, records it in
// the plot log and logs reason. Once it has succeeded further calls only
// refresh the snapshot.
func (c *Controller) FailSafe(snap status.Snapshot, reason error) (status.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap.PinOrder = c.opts.PinOrder
	snap.FailSafe = true
	if snap.Err == nil {
		snap.Err = reason
	}
	if snap.Run == "" {
		snap.Run = c.opts.RunID
	}

	if !c.failedSafe {
		c.opts.Log.WithError(reason).Errorf("aborting with %s", logic.FailSafe)
		if err := c.opts.Pins.Write(logic.FailSafe.Output()); err != nil {
			c.opts.Log.WithError(err).Error("could not write fail-safe output state")
			snap.Now = c.now()
			return snap, fmt.Errorf("write fail-safe output state: %w", err)
		}
		c.failedSafe = true
		c.opts.Plot.Record(logic.FailSafe)
	}

	snap.Level = status.LevelPtr(logic.FailSafe)
	if after, err := c.opts.Pins.Read(); err == nil {
		snap.Pins = after
	} else {
		snap.Pins = logic.FailSafe.Output()
	}
	snap.Now = c.now()
	return snap, nil
}

// State reads the latched output state without changing it. An unknown
// pattern leaves Level nil.
func (c *Controller) State() (status.Snapshot, error) {
	snap := status.Snapshot{PinOrder: c.opts.PinOrder, Now: c.now()}
	pins, err := c.opts.Pins.Read()
	if err != nil {
		return snap, fmt.Errorf("read output state: %w", err)
	}
	snap.Pins = pins
	if l, err := logic.LevelOf(pins); err == nil {
		snap.Level = status.LevelPtr(l)
	} else {
		c.opts.Log.Warn(err)
	}
	return snap, nil
}
