// Package config loads dreadpi settings from struct-tag defaults, a TOML
// file and DREADPI_ environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/koding/multiconfig"

	"github.com/sweeney/dreadpi/internal/fault"
	"github.com/sweeney/dreadpi/internal/gpio"
	"github.com/sweeney/dreadpi/internal/logic"
	"github.com/sweeney/dreadpi/internal/source"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/dreadpi/dreadpi.toml"

// DefaultErrorLog is the error log used when none is configured or no
// configuration could be loaded.
const DefaultErrorLog = "/var/log/dreadpi.errorlog.txt"

// EnvPrefix prefixes every environment override, e.g.
// DREADPI_MAIN_THRESHOLD_LOW or DREADPI_ENLIGHTEN_KEY.
const EnvPrefix = "DREADPI"

// Config is the whole dreadpi configuration, loaded once per run.
type Config struct {
	Main           Main                   `toml:"main"`
	Hardware       Hardware               `toml:"hardware"`
	Enlighten      source.EnlightenConfig `toml:"enlighten"`
	PVOutput       source.PVOutputConfig  `toml:"pvoutput"`
	ExternalScript source.CommandConfig   `toml:"external_script"`
	Privilege      Privilege              `toml:"privilege"`
	Lock           Lock                   `toml:"lock"`
	Log            Log                    `toml:"log"`
	MQTT           MQTT                   `toml:"mqtt"`
	Metrics        Metrics                `toml:"metrics"`
}

type Main struct {
	ThresholdLow  int    `toml:"threshold_low"`
	ThresholdHigh int    `toml:"threshold_high"`
	DataSource    string `toml:"data_source"`
	// FreshnessTime is the maximum age of a timestamped reading, in seconds.
	FreshnessTime int `toml:"freshness_time"`
}

type Hardware struct {
	Chip string `toml:"chip" default:"gpiochip0"`
	// PinOrder holds the two line offsets, first pin first.
	PinOrder []int `toml:"pin_order"`
}

type Privilege struct {
	User  string `toml:"user" default:"nobody"`
	Group string `toml:"group" default:"nogroup"`
}

type Lock struct {
	Name string `toml:"name" default:"dreadpi"`
}

type Log struct {
	Level    string `toml:"level" default:"info"`
	ErrorLog string `toml:"error_log" default:"/var/log/dreadpi.errorlog.txt"`
	PlotLog  string `toml:"plot_log" default:"/var/log/dreadpi.plotlog.txt"`
}

// MQTT reporting is disabled when Broker is empty.
type MQTT struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic" default:"energy/dreadpi/drm"`
	ClientID string `toml:"client_id" default:"dreadpi"`
}

// Metrics export is disabled when Textfile is empty.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Load reads envFile (if set) into the process environment, then fills a
// Config from defaults, the TOML file at path (if set) and the environment.
// Load does not validate; call Validate.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("%w: env file %s: %v", fault.ErrConfiguration, envFile, err)
		}
	}

	loaders := []multiconfig.Loader{&multiconfig.TagLoader{}}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: config file: %v", fault.ErrConfiguration, err)
		}
		loaders = append(loaders, &multiconfig.TOMLLoader{Path: path})
	}
	loaders = append(loaders, &multiconfig.EnvironmentLoader{Prefix: EnvPrefix, CamelCase: true})

	cfg := &Config{}
	if err := multiconfig.MultiLoader(loaders...).Load(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
	}
	return cfg, nil
}

// Thresholds returns the configured decision bands.
func (c *Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{Low: c.Main.ThresholdLow, High: c.Main.ThresholdHigh}
}

// Freshness returns the maximum accepted age of a reading.
func (c *Config) Freshness() time.Duration {
	return time.Duration(c.Main.FreshnessTime) * time.Second
}

// Sources returns the settings of every energy source.
func (c *Config) Sources() source.Config {
	return source.Config{
		Enlighten:      c.Enlighten,
		PVOutput:       c.PVOutput,
		ExternalScript: c.ExternalScript,
	}
}

// Chip returns the GPIO chip, falling back to gpio.DefaultChip.
func (c *Config) Chip() string {
	if c.Hardware.Chip == "" {
		return gpio.DefaultChip
	}
	return c.Hardware.Chip
}

// Pins returns the pin order once it has passed PinsValid.
func (c *Config) Pins() [2]int {
	var p [2]int
	copy(p[:], c.Hardware.PinOrder)
	return p
}

// PinsValid checks that exactly two distinct, non-negative line offsets are
// configured. It is checked on its own so a run can still reach the
// fail-safe when only the rest of the configuration is broken.
func (c *Config) PinsValid() error {
	p := c.Hardware.PinOrder
	if len(p) != 2 {
		return fmt.Errorf("%w: pin_order needs exactly 2 pins, got %d", fault.ErrConfiguration, len(p))
	}
	if p[0] < 0 || p[1] < 0 {
		return fmt.Errorf("%w: pin_order %v contains a negative offset", fault.ErrConfiguration, p)
	}
	if p[0] == p[1] {
		return fmt.Errorf("%w: pin_order %v repeats a pin", fault.ErrConfiguration, p)
	}
	return nil
}

// Validate performs the basic config check: both thresholds set with
// 0 < low < high, a positive freshness window, a known data source and a
// valid pin order. Source credentials are checked by source.New.
func (c *Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.Main.FreshnessTime <= 0 {
		return fmt.Errorf("%w: freshness_time must be > 0, got %d", fault.ErrConfiguration, c.Main.FreshnessTime)
	}
	if _, err := source.ParseKind(c.Main.DataSource); err != nil {
		return err
	}
	return c.PinsValid()
}
