// Package source fetches the current renewable-energy production figure from
// one of several interchangeable sources.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/supervisor"
)

// Reading is one production figure as returned by a source.
type Reading struct {
	// Watts is the raw figure. It is not trusted until logic.ParseWatts
	// accepts it.
	Watts string
	// Timestamp is when the source measured Watts, in POSIX seconds.
	// Nil when the source has no notion of time.
	Timestamp *float64
}

// Source fetches a Reading. Fetch refuses to run without proof that the
// process has dropped its privileges.
type Source interface {
	Kind() Kind
	Fetch(ctx context.Context, u *supervisor.Unprivileged) (Reading, error)
}

// Kind selects a source implementation.
type Kind int

const (
	Enlighten Kind = iota + 1
	PVOutput
	ExternalScript
)

var kindNames = map[Kind]string{
	Enlighten:      "enlighten",
	PVOutput:       "pvoutput",
	ExternalScript: "external_script",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a configured data_source name to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: no known energy source %q requested", fault.ErrConfiguration, name)
}

// Config carries the settings of every source; only the selected one is
// validated.
type Config struct {
	Enlighten      EnlightenConfig `toml:"enlighten"`
	PVOutput       PVOutputConfig  `toml:"pvoutput"`
	ExternalScript CommandConfig   `toml:"external_script"`
}

var httpClient = &http.Client{
	Timeout: time.Second * 30,
}

// New validates the settings of kind and returns its Source.
// client may be nil to use a client with a 30 second timeout.
func New(kind Kind, cfg Config, client *http.Client, log logrus.FieldLogger) (Source, error) {
	if client == nil {
		client = httpClient
	}
	switch kind {
	case Enlighten:
		return NewEnlighten(cfg.Enlighten, client, log)
	case PVOutput:
		return NewPVOutput(cfg.PVOutput, client, log)
	case ExternalScript:
		return NewCommand(cfg.ExternalScript, log)
	}
	return nil, fmt.Errorf("%w: no known energy source %v requested", fault.ErrConfiguration, kind)
}

func checkToken(u *supervisor.Unprivileged) error {
	if err := u.Check(); err != nil {
		return fmt.Errorf("%w: refusing to fetch: %v", fault.ErrInvariant, err)
	}
	return nil
}

// unwrapURLError strips the request URL from transport errors; URLs can
// carry API keys.
func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}
