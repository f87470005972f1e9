package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/supervisor"
	"github.com/sweeney/dreadpi/internal/validate"
)

// DefaultPVOutputURL is the PVOutput API base.
const DefaultPVOutputURL = "https://pvoutput.org"

const (
	pvoutputStatusPath = "/service/r2/getstatus.jsp"

	// Warn when fewer requests than this remain in the hourly allowance.
	pvoutputRateLimitWarn = 10

	pvoutputTimeLayout = "2006010215:04"
	maxStatusBody      = 4096
)

// PVOutputConfig holds PVOutput API credentials.
type PVOutputConfig struct {
	Key     string `toml:"key"`
	SysID   string `toml:"sys_id"`
	BaseURL string `toml:"base_url" default:"https://pvoutput.org"`
}

// PVOutputSource reads power generation from the PVOutput Get Status service.
type PVOutputSource struct {
	key     string
	sysID   string
	baseURL string
	client  *http.Client
	log     logrus.FieldLogger
}

// pvStatus is the positional Get Status record.
type pvStatus struct {
	Date              string
	Time              string
	EnergyGeneration  string
	PowerGeneration   string
	EnergyConsumption string
	PowerConsumption  string
	Efficiency        string
	Temperature       string
	Voltage           string
}

// NewPVOutput validates cfg: key 40 hex characters, sys_id decimal with
// fewer than 10 digits.
func NewPVOutput(cfg PVOutputConfig, client *http.Client, log logrus.FieldLogger) (*PVOutputSource, error) {
	if cfg.Key == "" || cfg.SysID == "" {
		return nil, fmt.Errorf("%w: pvoutput config not found (key and sys_id are required)", fault.ErrConfiguration)
	}
	if !validate.IsHex(cfg.Key) || len(cfg.Key) != 40 ||
		!validate.IsInteger(cfg.SysID) || len(cfg.SysID) >= 10 {
		return nil, fmt.Errorf("%w: unexpected values in pvoutput config", fault.ErrConfiguration)
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultPVOutputURL
	}
	return &PVOutputSource{
		key:     cfg.Key,
		sysID:   cfg.SysID,
		baseURL: base,
		client:  client,
		log:     log.WithField("source", PVOutput.String()),
	}, nil
}

func (s *PVOutputSource) Kind() Kind { return PVOutput }

// Fetch issues one GET for the latest status. Running low on the API rate
// limit is logged as a warning and does not fail the fetch.
func (s *PVOutputSource) Fetch(ctx context.Context, u *supervisor.Unprivileged) (Reading, error) {
	if err := checkToken(u); err != nil {
		return Reading{}, err
	}
	s.log.Debug("bleep bloop bleep...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+pvoutputStatusPath, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: build pvoutput request: %v", fault.ErrConfiguration, err)
	}
	req.Header.Set("X-Rate-Limit", "1")
	req.Header.Set("X-Pvoutput-Apikey", s.key)
	req.Header.Set("X-Pvoutput-SystemId", s.sysID)

	resp, err := s.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: error talking to pvoutput: %v", fault.ErrSourceUnavailable, unwrapURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return Reading{}, fmt.Errorf("%w: read pvoutput response: %v", fault.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("%w: pvoutput returned HTTP %d: %s", fault.ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	status, err := parseStatus(string(body))
	if err != nil {
		return Reading{}, err
	}

	s.checkRateLimit(resp.Header)

	s.log.WithFields(logrus.Fields{
		"date":               status.Date,
		"time":               status.Time,
		"energy_generation":  status.EnergyGeneration,
		"power_generation":   status.PowerGeneration,
		"energy_consumption": status.EnergyConsumption,
		"power_consumption":  status.PowerConsumption,
		"efficiency":         status.Efficiency,
		"temperature":        status.Temperature,
		"voltage":            status.Voltage,
	}).Info("pvoutput status")

	return Reading{
		Watts:     status.PowerGeneration,
		Timestamp: s.timestamp(status),
	}, nil
}

func parseStatus(body string) (pvStatus, error) {
	f := strings.Split(strings.TrimSpace(body), ",")
	if len(f) != 9 {
		return pvStatus{}, fmt.Errorf("%w: unexpected pvoutput status record with %d fields", fault.ErrSourceUnavailable, len(f))
	}
	return pvStatus{
		Date:              f[0],
		Time:              f[1],
		EnergyGeneration:  f[2],
		PowerGeneration:   f[3],
		EnergyConsumption: f[4],
		PowerConsumption:  f[5],
		Efficiency:        f[6],
		Temperature:       f[7],
		Voltage:           f[8],
	}, nil
}

func (s *PVOutputSource) checkRateLimit(h http.Header) {
	remaining, err := strconv.Atoi(h.Get("X-Rate-Limit-Remaining"))
	if err != nil || remaining >= pvoutputRateLimitWarn {
		return
	}
	resets := "unknown"
	if reset, err := strconv.ParseFloat(h.Get("X-Rate-Limit-Reset"), 64); err == nil {
		resets = time.Unix(int64(reset), 0).Local().Format("15:04")
	}
	s.log.Warnf("you are %d requests from the pvoutput api limit; resets at %s", remaining, resets)
}

// timestamp combines the record's date and time as local time.
func (s *PVOutputSource) timestamp(st pvStatus) *float64 {
	t, err := time.ParseInLocation(pvoutputTimeLayout, st.Date+st.Time, time.Local)
	if err != nil {
		s.log.Warnf("can't parse pvoutput timestamp %q %q: %v", st.Date, st.Time, err)
		return nil
	}
	ts := float64(t.Unix())
	return &ts
}
