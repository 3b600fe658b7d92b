package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/goccy/go-yaml"

	"sensorviz/internal/window"
)

type APIConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Timeout string `yaml:"timeout"` // Go duration, e.g. "10s"
}

type ViewConfig struct {
	PollSchedule string   `yaml:"pollSchedule"` // cron spec, e.g. "@every 5s"
	Timezone     string   `yaml:"timezone"`     // zone for displayed timestamps
	DataTimezone string   `yaml:"dataTimezone"` // zone assumed for zone-less timestamps
	Interval     string   `yaml:"interval"`     // ISO-8601 axis interval, e.g. "PT5M"
	Palette      []string `yaml:"palette,omitempty"`
	LimitOptions []int    `yaml:"limitOptions,omitempty"`
	DefaultLimit int      `yaml:"defaultLimit"`
	LookbackDays int      `yaml:"lookbackDays"` // range fetched before the user picks dates
	AllSince     string   `yaml:"allSince"`     // first date fetched for the "all" range, YYYY-MM-DD
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type Config struct {
	API    APIConfig    `yaml:"api"`
	View   ViewConfig   `yaml:"view"`
	Server ServerConfig `yaml:"server"`
	Debug  bool         `yaml:"debug"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:3000"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "10s"
	}
	if c.View.PollSchedule == "" {
		c.View.PollSchedule = "@every 5s"
	}
	if c.View.Timezone == "" {
		c.View.Timezone = "Asia/Tokyo"
	}
	if c.View.DataTimezone == "" {
		c.View.DataTimezone = "Local"
	}
	if c.View.Interval == "" {
		c.View.Interval = "PT5M"
	}
	if len(c.View.LimitOptions) == 0 {
		c.View.LimitOptions = []int{10, 25, 50, 100}
	}
	if c.View.DefaultLimit == 0 {
		c.View.DefaultLimit = c.View.LimitOptions[0]
	}
	if c.View.LookbackDays == 0 {
		c.View.LookbackDays = 7
	}
	if c.View.AllSince == "" {
		c.View.AllSince = window.DefaultAllSince
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	if _, err := c.DisplayLocation(); err != nil {
		return err
	}
	if _, err := c.DataLocation(); err != nil {
		return err
	}
	for _, col := range c.View.Palette {
		if !strings.HasPrefix(col, "#") || len(col) < 4 {
			return fmt.Errorf("palette entry %q is not a #rrggbb colour", col)
		}
	}
	for _, n := range c.View.LimitOptions {
		if n < 1 {
			return fmt.Errorf("limit option %d must be positive", n)
		}
	}
	if !slices.Contains(c.View.LimitOptions, c.View.DefaultLimit) {
		return fmt.Errorf("default limit %d is not one of %v", c.View.DefaultLimit, c.View.LimitOptions)
	}
	if c.View.LookbackDays < 1 {
		return fmt.Errorf("lookbackDays must be positive, got %d", c.View.LookbackDays)
	}
	if _, err := c.AllSinceDate(time.UTC); err != nil {
		return err
	}
	return nil
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing api timeout: %v", err)
	}
	return d, nil
}

func (c *Config) DisplayLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.View.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading display timezone: %v", err)
	}
	return loc, nil
}

func (c *Config) DataLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.View.DataTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading data timezone: %v", err)
	}
	return loc, nil
}

// AllSinceDate returns the start of the "all" range as midnight in loc.
func (c *Config) AllSinceDate(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(window.DateLayout, c.View.AllSince, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing allSince: %v", err)
	}
	return t, nil
}

func Load(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := &Config{}
	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("parsing yaml: %v", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
