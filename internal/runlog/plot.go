package runlog

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/logic"
)

// Plot appends one "time<TAB>value" line per signalled level.
type Plot struct {
	log    *logrus.Logger
	closer io.Closer
}

// OpenPlot opens the rotating plot log at path before returning. An empty
// path records nothing.
func OpenPlot(path string) (*Plot, error) {
	if path == "" {
		return newPlot(io.Discard, nopCloser{}), nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    plotLogMaxMB,
		MaxBackups: plotLogMaxBackups,
	}
	if err := prime(lj, plotLogMaxMB); err != nil {
		return nil, fmt.Errorf("%w: plot log: %v", fault.ErrConfiguration, err)
	}
	return newPlot(lj, lj), nil
}

func newPlot(w io.Writer, c io.Closer) *Plot {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&tabFormatter{})
	return &Plot{log: log, closer: c}
}

// Record writes the plot value of l.
func (p *Plot) Record(l logic.Level) {
	p.log.Info(strconv.Itoa(l.PlotValue()))
}

func (p *Plot) Close() error {
	return p.closer.Close()
}
