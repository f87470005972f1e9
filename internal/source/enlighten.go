package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/supervisor"
	"github.com/sweeney/dreadpi/internal/validate"
)

// DefaultEnlightenURL is the Enphase Enlighten API base.
const DefaultEnlightenURL = "https://api.enphaseenergy.com"

// EnlightenConfig holds Enphase Enlighten v2 API credentials.
type EnlightenConfig struct {
	SysID   string `toml:"sys_id"`
	Key     string `toml:"key"`
	UserID  string `toml:"user_id"`
	BaseURL string `toml:"base_url" default:"https://api.enphaseenergy.com"`
}

// EnlightenSource reads current_power from the Enlighten system summary.
type EnlightenSource struct {
	sysID   string
	key     string
	userID  string
	baseURL string
	client  *http.Client
	log     logrus.FieldLogger
}

type enlightenSummary struct {
	SystemID     json.Number `json:"system_id"`
	Modules      json.Number `json:"modules"`
	CurrentPower json.Number `json:"current_power"`
	EnergyToday  json.Number `json:"energy_today"`
	Status       string      `json:"status"`
	LastReportAt json.Number `json:"last_report_at"`
}

// NewEnlighten validates cfg: sys_id decimal with fewer than 10 digits, key
// 32 hex characters, user_id 18 hex characters.
func NewEnlighten(cfg EnlightenConfig, client *http.Client, log logrus.FieldLogger) (*EnlightenSource, error) {
	if cfg.SysID == "" || cfg.Key == "" || cfg.UserID == "" {
		return nil, fmt.Errorf("%w: enlighten config not found (sys_id, key and user_id are required)", fault.ErrConfiguration)
	}
	if !validate.IsInteger(cfg.SysID) || len(cfg.SysID) >= 10 ||
		!validate.IsHex(cfg.Key) || len(cfg.Key) != 32 ||
		!validate.IsHex(cfg.UserID) || len(cfg.UserID) != 18 {
		return nil, fmt.Errorf("%w: unexpected values in enlighten config", fault.ErrConfiguration)
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultEnlightenURL
	}
	return &EnlightenSource{
		sysID:   cfg.SysID,
		key:     cfg.Key,
		userID:  cfg.UserID,
		baseURL: base,
		client:  client,
		log:     log.WithField("source", Enlighten.String()),
	}, nil
}

func (s *EnlightenSource) Kind() Kind { return Enlighten }

// Fetch issues one GET for the system summary. A status other than "normal"
// is logged as a warning and does not fail the fetch.
func (s *EnlightenSource) Fetch(ctx context.Context, u *supervisor.Unprivileged) (Reading, error) {
	if err := checkToken(u); err != nil {
		return Reading{}, err
	}
	s.log.Debug("whir whir...")

	q := url.Values{}
	q.Set("key", s.key)
	q.Set("user_id", s.userID)
	endpoint := fmt.Sprintf("%s/api/v2/systems/%s/summary?%s", s.baseURL, s.sysID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: build enlighten request: %v", fault.ErrConfiguration, unwrapURLError(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: error talking to enlighten: %v", fault.ErrSourceUnavailable, unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("%w: enlighten returned HTTP %d", fault.ErrSourceUnavailable, resp.StatusCode)
	}

	summary := &enlightenSummary{}
	if err := json.NewDecoder(resp.Body).Decode(summary); err != nil {
		return Reading{}, fmt.Errorf("%w: decode enlighten summary: %v", fault.ErrSourceUnavailable, err)
	}

	if summary.Status != "normal" {
		s.log.Warnf("enlighten reports status: %s", summary.Status)
	}

	s.log.WithFields(logrus.Fields{
		"system_id":      summary.SystemID,
		"modules":        summary.Modules,
		"current_power":  summary.CurrentPower,
		"energy_today":   summary.EnergyToday,
		"status":         summary.Status,
		"last_report_at": summary.LastReportAt,
	}).Info("enlighten summary")

	return Reading{
		Watts:     summary.CurrentPower.String(),
		Timestamp: s.timestamp(summary.LastReportAt),
	}, nil
}

func (s *EnlightenSource) timestamp(n json.Number) *float64 {
	if n == "" {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		s.log.Warnf("can't use last_report_at %q as a timestamp: %v", n, err)
		return nil
	}
	return &f
}
