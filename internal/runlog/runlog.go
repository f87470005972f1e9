// Package runlog sets up the logging of a single dreadpi run: a logrus
// logger on stderr, an error log file mirroring warnings and errors, and the
// plot log recording the signalled level for graphing.
package runlog

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sweeney/dreadpi/internal/fault"
)

const (
	// Error log rotates at 1 MB. lumberjack treats 0 backups as
	// "keep all", so the smallest bounded setting is one.
	errorLogMaxMB      = 1
	errorLogMaxBackups = 1

	plotLogMaxMB      = 5
	plotLogMaxBackups = 2

	// A run writes a few lines at most. Files this close to their limit are
	// rotated while the process can still create files in the log directory.
	rotateHeadroom = 64 * 1024
)

// New returns a logger writing text to out at info level, with every entry
// carrying a fresh run id.
func New(out io.Writer) (*logrus.Logger, *logrus.Entry) {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimeLayout,
	})
	return log, log.WithField("run", uuid.NewString())
}

// SetLevel applies a configured level name such as "debug" or "warning".
func SetLevel(log *logrus.Logger, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: log level: %v", fault.ErrConfiguration, err)
	}
	log.SetLevel(lvl)
	return nil
}

// AttachErrorLog mirrors warning-and-above entries of log to the rotating
// file at path. The file is opened before returning so that it stays
// writable after privileges are dropped. An empty path attaches nothing.
func AttachErrorLog(log *logrus.Logger, path string) (io.Closer, error) {
	if path == "" {
		return nopCloser{}, nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    errorLogMaxMB,
		MaxBackups: errorLogMaxBackups,
	}
	if err := prime(lj, errorLogMaxMB); err != nil {
		return nil, fmt.Errorf("%w: error log: %v", fault.ErrConfiguration, err)
	}
	log.AddHook(&fileHook{w: lj, formatter: &tabFormatter{fields: true}})
	return lj, nil
}

// prime opens lj, rotating first if the file is within rotateHeadroom of
// maxMB.
func prime(lj *lumberjack.Logger, maxMB int64) error {
	if fi, err := os.Stat(lj.Filename); err == nil && fi.Size() >= maxMB*1024*1024-rotateHeadroom {
		if err := lj.Rotate(); err != nil {
			return err
		}
	}
	_, err := lj.Write(nil)
	return err
}

type fileHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *fileHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
