// Package config loads and validates the switchback configuration from
// pluggable backends (YAML file or SQLite database).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Provider defines the interface for configuration data sources.
type Provider interface {
	// LoadConfig loads and validates the complete configuration. The
	// result is an immutable snapshot; reload calls LoadConfig again.
	LoadConfig() (*Data, error)

	IsReadOnly() bool
	Close() error
}

// Wallpaper source modes.
const (
	ModeWallpaper = "wallpaper"
	ModeGenerated = "generated"
)

// Data is the complete configuration document.
type Data struct {
	Location   Location   `yaml:"location"`
	Mode       string     `yaml:"mode,omitempty"`
	Wallpapers Wallpapers `yaml:"wallpapers,omitempty"`
	Generated  *Generated `yaml:"generated,omitempty"`
	Settings   Settings   `yaml:"settings,omitempty"`
}

// Location fixes the observer for all solar computations. Invalid
// values are a fatal configuration error at startup.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
}

// Load resolves the configured IANA zone.
func (l Location) Load() (*time.Location, error) {
	if l.Timezone == "" {
		return nil, errors.New("missing required field: location.timezone")
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q (must be an IANA zone like America/Los_Angeles): %w", l.Timezone, err)
	}
	return loc, nil
}

// Wallpapers maps each period to an image file. Every period must be
// configured; the mapping is checked eagerly at startup so a missing
// period can never surface as a runtime lookup failure.
type Wallpapers struct {
	Night     string `yaml:"night"`
	Morning   string `yaml:"morning"`
	Afternoon string `yaml:"afternoon"`
}

// All returns the three configured paths in cycle order.
func (w Wallpapers) All() []string {
	return []string{w.Night, w.Morning, w.Afternoon}
}

// Generated configures synthesized wallpapers: a solid background per
// period with a tinted logo composited on top.
type Generated struct {
	Logo             string       `yaml:"logo"`
	BackgroundColors PeriodColors `yaml:"background_colors"`
	LogoColors       PeriodColors `yaml:"logo_colors"`
	LogoScale        float64      `yaml:"logo_scale,omitempty"`
	LogoPosition     string       `yaml:"logo_position,omitempty"`
}

// PeriodColors holds one hex color per period.
type PeriodColors struct {
	Night     string `yaml:"night"`
	Morning   string `yaml:"morning"`
	Afternoon string `yaml:"afternoon"`
}

// Settings holds daemon behavior knobs.
type Settings struct {
	// CheckIntervalFallback bounds the maximum sleep in seconds even
	// outside gradual mode, guarding against clock anomalies.
	CheckIntervalFallback int         `yaml:"check_interval_fallback,omitempty"`
	PreloadAll            *bool       `yaml:"preload_all,omitempty"`
	Monitor               string      `yaml:"monitor,omitempty"`
	StatusListen          string      `yaml:"status_listen,omitempty"`
	Transitions           Transitions `yaml:"transitions,omitempty"`
}

// Transitions configures the gradual blend engine.
type Transitions struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	Granularity    int    `yaml:"granularity,omitempty"` // seconds
	CacheBlends    *bool  `yaml:"cache_blends,omitempty"`
	CacheDir       string `yaml:"cache_dir,omitempty"`
	MaxCacheSizeMB int64  `yaml:"max_cache_size_mb,omitempty"`
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// applyDefaults fills unset optional fields.
func (d *Data) applyDefaults() {
	if d.Mode == "" {
		d.Mode = ModeWallpaper
	}
	if d.Settings.CheckIntervalFallback == 0 {
		d.Settings.CheckIntervalFallback = 300
	}
	if d.Settings.PreloadAll == nil {
		v := true
		d.Settings.PreloadAll = &v
	}
	if d.Settings.Transitions.Granularity == 0 {
		d.Settings.Transitions.Granularity = 3600
	}
	if d.Settings.Transitions.CacheBlends == nil {
		v := true
		d.Settings.Transitions.CacheBlends = &v
	}
	if d.Settings.Transitions.CacheDir == "" {
		d.Settings.Transitions.CacheDir = "~/.cache/switchback"
	}
	if d.Settings.Transitions.MaxCacheSizeMB == 0 {
		d.Settings.Transitions.MaxCacheSizeMB = 500
	}
	if d.Generated != nil {
		if d.Generated.LogoScale == 0 {
			d.Generated.LogoScale = 0.3
		}
		if d.Generated.LogoPosition == "" {
			d.Generated.LogoPosition = "center"
		}
	}
}

// Validate checks the document. When checkPaths is set, referenced
// image files must exist on disk.
func (d *Data) Validate(checkPaths bool) error {
	if d.Location.Latitude < -90 || d.Location.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %v", d.Location.Latitude)
	}
	if d.Location.Longitude < -180 || d.Location.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %v", d.Location.Longitude)
	}
	if _, err := d.Location.Load(); err != nil {
		return err
	}

	switch d.Mode {
	case ModeWallpaper:
		if err := d.validateWallpapers(checkPaths); err != nil {
			return err
		}
	case ModeGenerated:
		if err := d.validateGenerated(checkPaths); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", d.Mode, ModeWallpaper, ModeGenerated)
	}

	g := d.Settings.Transitions.Granularity
	if g < 60 || g > 86400 {
		return fmt.Errorf("transition granularity must be between 60 and 86400 seconds, got %d", g)
	}
	if d.Settings.CheckIntervalFallback < 0 {
		return fmt.Errorf("check_interval_fallback must not be negative, got %d", d.Settings.CheckIntervalFallback)
	}
	if d.Settings.Transitions.MaxCacheSizeMB < 0 {
		return fmt.Errorf("max_cache_size_mb must not be negative, got %d", d.Settings.Transitions.MaxCacheSizeMB)
	}
	return nil
}

func (d *Data) validateWallpapers(checkPaths bool) error {
	named := map[string]string{
		"night":     d.Wallpapers.Night,
		"morning":   d.Wallpapers.Morning,
		"afternoon": d.Wallpapers.Afternoon,
	}
	for period, path := range named {
		if path == "" {
			return fmt.Errorf("missing wallpaper configuration for %q", period)
		}
		if checkPaths {
			if err := checkFile(ExpandPath(path)); err != nil {
				return fmt.Errorf("wallpaper for %q: %w", period, err)
			}
		}
	}
	return nil
}

func (d *Data) validateGenerated(checkPaths bool) error {
	g := d.Generated
	if g == nil {
		return errors.New("generated mode requires a generated section")
	}
	if g.Logo == "" {
		return errors.New("generated mode requires a logo path")
	}
	if checkPaths {
		if err := checkFile(ExpandPath(g.Logo)); err != nil {
			return fmt.Errorf("logo: %w", err)
		}
	}
	for _, pc := range []struct {
		name   string
		colors PeriodColors
	}{
		{"background_colors", g.BackgroundColors},
		{"logo_colors", g.LogoColors},
	} {
		for period, c := range map[string]string{
			"night": pc.colors.Night, "morning": pc.colors.Morning, "afternoon": pc.colors.Afternoon,
		} {
			if !hexColorRe.MatchString(c) {
				return fmt.Errorf("invalid hex color for %s.%s: %q", pc.name, period, c)
			}
		}
	}
	if g.LogoScale <= 0 || g.LogoScale > 1 {
		return fmt.Errorf("logo_scale must be between 0 and 1, got %v", g.LogoScale)
	}
	switch g.LogoPosition {
	case "center", "top", "bottom":
	default:
		return fmt.Errorf("logo_position must be center, top or bottom, got %q", g.LogoPosition)
	}
	return nil
}

func checkFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	if fi.IsDir() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}

// ExpandPath expands a leading ~ and any environment variables.
func ExpandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || len(p) > 1 && p[0] == '~' && p[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// DefaultPath returns the default configuration file location,
// honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "switchback", "config.yaml")
}

// FallbackLocation seeds new config files when geolocation is
// unavailable.
var FallbackLocation = Location{Latitude: 37.7749, Longitude: -122.4194, Timezone: "America/Los_Angeles"}

const template = `# Switchback configuration

location:
  latitude: %v
  longitude: %v
  timezone: "%s"

wallpapers:
  night: ~/Pictures/backgrounds/night.jpg
  morning: ~/Pictures/backgrounds/morning.jpg
  afternoon: ~/Pictures/backgrounds/afternoon.jpg

settings:
  check_interval_fallback: 300  # Safety check interval (seconds)
  preload_all: true             # Preload all wallpapers at startup
  monitor: ""                   # Monitor name (empty = all monitors)

  # Gradual wallpaper transitions (optional)
  transitions:
    enabled: false              # Blend gradually between wallpapers
    granularity: 3600           # Blend refresh interval (seconds)
    cache_blends: true          # Cache blended images
    cache_dir: "~/.cache/switchback"
    max_cache_size_mb: 500
`

// WriteTemplate writes a starter configuration file seeded with loc.
func WriteTemplate(path string, force bool, loc Location) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	body := fmt.Sprintf(template, loc.Latitude, loc.Longitude, loc.Timezone)
	return os.WriteFile(path, []byte(body), 0o644)
}
