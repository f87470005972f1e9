package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dreadpi/internal/config"
	"github.com/sweeney/dreadpi/internal/controller"
	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/metrics"
	"github.com/sweeney/dreadpi/internal/runlog"
	"github.com/sweeney/dreadpi/internal/source"
	"github.com/sweeney/dreadpi/internal/status"
	"github.com/sweeney/dreadpi/internal/supervisor"
)

// runOnce is the single top-level handler of a run: every error after the
// output lines are open ends in the fail-safe.
func (a *app) runOnce(ctx context.Context, f *flags) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, log := runlog.New(a.stderr)
	runID, _ := log.Data["run"].(string)

	cfg, cfgErr := a.loadConfig(f, logger)

	// The error log goes first so that every exit below leaves a reason in it.
	errorLog := a.defaultErrorLog
	if cfg != nil {
		errorLog = cfg.Log.ErrorLog
	}
	closer, err := runlog.AttachErrorLog(logger, errorLog)
	switch {
	case err == nil:
		defer closer.Close()
	case cfg != nil:
		cfgErr = errors.Join(cfgErr, err)
	default:
		log.WithError(err).Warn("error log unavailable")
	}

	held, err := a.lock(cfg, log)
	if err != nil {
		return err
	}
	defer held.Release()

	if cfg == nil {
		log.WithError(cfgErr).Error("basic config missing; outputs left untouched")
		return loggedError{cfgErr}
	}
	if err := cfg.PinsValid(); err != nil {
		log.WithError(err).Error("no usable pin order; outputs left untouched")
		return loggedError{err}
	}

	plot, err := runlog.OpenPlot(cfg.Log.PlotLog)
	if err != nil {
		cfgErr = errors.Join(cfgErr, err)
		plot, _ = runlog.OpenPlot("")
	}
	defer plot.Close()

	var textfile *metrics.Textfile
	if cfg.Metrics.Textfile != "" {
		if textfile, err = metrics.OpenTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("metrics textfile disabled")
		} else {
			defer textfile.Close()
		}
	}

	pins, err := a.openPins(cfg.Chip(), cfg.Pins())
	if err != nil {
		log.WithError(err).Error("cannot open output lines")
		return loggedError{fmt.Errorf("open gpio: %w", err)}
	}
	defer pins.Close()

	ctrl := controller.New(controller.Options{
		Pins:       pins,
		PinOrder:   cfg.Pins(),
		Thresholds: cfg.Thresholds(),
		Freshness:  cfg.Freshness(),
		NewSource: func() (source.Source, error) {
			kind, err := source.ParseKind(cfg.Main.DataSource)
			if err != nil {
				return nil, err
			}
			return source.New(kind, cfg.Sources(), a.httpClient, log)
		},
		Dropper: a.newDropper(cfg.Privilege.User, cfg.Privilege.Group),
		Plot:    plot,
		Log:     log,
		RunID:   runID,
		Now:     a.now,
	})

	snap := status.Snapshot{Run: runID, PinOrder: cfg.Pins(), StartTime: a.now()}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", fault.ErrInvariant, r)
			snap, _ = ctrl.FailSafe(snap, err)
			a.report(cfg, textfile, snap, log)
			err = loggedError{err}
		}
	}()

	if cfgErr != nil {
		err = cfgErr
	} else {
		snap, err = ctrl.Run(ctx)
	}
	if err != nil {
		var fsErr error
		snap, fsErr = ctrl.FailSafe(snap, err)
		a.report(cfg, textfile, snap, log)
		return loggedError{errors.Join(err, fsErr)}
	}

	a.report(cfg, textfile, snap, log)
	return nil
}

// loadConfig returns nil only when nothing usable could be loaded. A config
// that loads but fails validation is returned with the error so the pins can
// still be driven to the fail-safe.
func (a *app) loadConfig(f *flags, logger *logrus.Logger) (*config.Config, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return nil, err
	}
	if err := runlog.SetLevel(logger, cfg.Log.Level); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (a *app) lock(cfg *config.Config, log logrus.FieldLogger) (lock, error) {
	name := supervisor.DefaultLockName
	if cfg != nil && cfg.Lock.Name != "" {
		name = cfg.Lock.Name
	}
	held, err := a.acquireLock(name)
	if err != nil {
		log.WithError(err).Error("aborting")
		return nil, loggedError{err}
	}
	return held, nil
}

// report publishes snap to the optional sinks. Failures are logged only.
func (a *app) report(cfg *config.Config, textfile *metrics.Textfile, snap status.Snapshot, log logrus.FieldLogger) {
	if cfg.MQTT.Broker != "" {
		pub, err := a.newPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			log.WithError(err).Warn("mqtt report skipped")
		} else {
			if err := pub.Publish(snap); err != nil {
				log.WithError(err).Warn("mqtt report failed")
			}
			pub.Close()
		}
	}
	if textfile != nil {
		if err := textfile.Write(snap); err != nil {
			log.WithError(err).Warn("metrics textfile not written")
		}
	}
}

// printState reads the latched output state without changing it.
func (a *app) printState(f *flags) error {
	logger, log := runlog.New(a.stderr)
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return err
	}
	if err := runlog.SetLevel(logger, cfg.Log.Level); err != nil {
		return err
	}
	if err := cfg.PinsValid(); err != nil {
		return err
	}

	held, err := a.lock(cfg, log)
	if err != nil {
		return err
	}
	defer held.Release()

	pins, err := a.openPins(cfg.Chip(), cfg.Pins())
	if err != nil {
		return fmt.Errorf("open gpio: %w", err)
	}
	defer pins.Close()

	ctrl := controller.New(controller.Options{Pins: pins, PinOrder: cfg.Pins(), Log: log, Now: a.now})
	snap, err := ctrl.State()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(status.FormatJSON(snap)))
	return err
}
