// Package config loads ditti settings from YAML.
package config

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/ditti/pkg/bouts"
	"github.com/codeGROOVE-dev/ditti/pkg/portal"
	"github.com/codeGROOVE-dev/ditti/pkg/sleep"
	"github.com/codeGROOVE-dev/ditti/pkg/tzconvert"
	"gopkg.in/yaml.v3"
)

// Config is the full settings file.
type Config struct {
	API    API    `yaml:"api"`
	Chart  Chart  `yaml:"chart"`
	Cache  Cache  `yaml:"cache"`
	Gemini Gemini `yaml:"gemini"`
}

// API locates the portal backend.
type API struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	App     int           `yaml:"app"`
}

// Chart controls rendering.
type Chart struct {
	Timezone  string `yaml:"timezone"`
	Colors    Colors `yaml:"colors"`
	Width     int    `yaml:"width"`
	RowHeight int    `yaml:"row_height"`
}

// Colors are hex colors for chart elements. Unset sleep stages keep their
// defaults.
type Colors struct {
	Sleep      map[string]string `yaml:"sleep"`
	Tap        string            `yaml:"tap"`
	Bout       string            `yaml:"bout"`
	Audio      string            `yaml:"audio"`
	Bar        string            `yaml:"bar"`
	Background string            `yaml:"background"`
}

// Cache configures the response cache. An empty Dir keeps it in memory.
type Cache struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

// Gemini configures optional AI digests.
type Gemini struct {
	Model   string `yaml:"model"`
	Project string `yaml:"project"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		API: API{
			App:     1,
			Timeout: 60 * time.Second,
		},
		Chart: Chart{
			Timezone:  "Local",
			Width:     1000,
			RowHeight: 28,
			Colors: Colors{
				Tap:        bouts.DefaultPalette.Tap,
				Bout:       bouts.DefaultPalette.Bout,
				Audio:      bouts.DefaultPalette.Audio,
				Bar:        "#6366f1",
				Background: "#ffffff",
			},
		},
		Cache: Cache{TTL: 20 * 24 * time.Hour},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("api.base_url %q must be an http or https URL", c.API.BaseURL))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout %v must be positive", c.API.Timeout))
	}
	if c.API.App < 1 || c.API.App > 3 {
		errs = append(errs, fmt.Errorf("api.app %d must be 1, 2 or 3", c.API.App))
	}
	if c.Chart.Width < 200 {
		errs = append(errs, fmt.Errorf("chart.width %d is below 200", c.Chart.Width))
	}
	if c.Chart.RowHeight < 8 {
		errs = append(errs, fmt.Errorf("chart.row_height %d is below 8", c.Chart.RowHeight))
	}
	if _, err := tzconvert.LoadLocation(c.Chart.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("chart.timezone: %w", err))
	}
	colors := map[string]string{
		"tap": c.Chart.Colors.Tap, "bout": c.Chart.Colors.Bout, "audio": c.Chart.Colors.Audio,
		"bar": c.Chart.Colors.Bar, "background": c.Chart.Colors.Background,
	}
	for stage, v := range c.Chart.Colors.Sleep {
		colors["sleep."+stage] = v
	}
	for _, name := range sortedKeys(colors) {
		if !hexColor.MatchString(colors[name]) {
			errs = append(errs, fmt.Errorf("chart.colors.%s %q is not a hex color", name, colors[name]))
		}
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// PortalOptions applies the api section to a portal client.
func (c *Config) PortalOptions() []portal.Option {
	return []portal.Option{
		portal.WithHTTPClient(&http.Client{Timeout: c.API.Timeout}),
		portal.WithApp(portal.App(c.API.App)),
	}
}

// Location resolves the chart timezone.
func (c *Config) Location() (*time.Location, error) {
	return tzconvert.LoadLocation(c.Chart.Timezone)
}

// Palette returns the bout colors.
func (c *Config) Palette() bouts.Palette {
	return bouts.Palette{Tap: c.Chart.Colors.Tap, Bout: c.Chart.Colors.Bout, Audio: c.Chart.Colors.Audio}
}

// SleepPalette returns stage colors with overrides applied.
func (c *Config) SleepPalette() map[string]string {
	p := maps.Clone(sleep.DefaultPalette)
	maps.Copy(p, c.Chart.Colors.Sleep)
	return p
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
