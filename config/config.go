package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/radar-scan/engine"
	"github.com/lixenwraith/radar-scan/vmath"
)

var (
	ErrDuplicateID    = errors.New("duplicate location id")
	ErrEmptyID        = errors.New("location id is empty")
	ErrNoPosition     = errors.New("location needs position or lat/lng")
	ErrBadCycle       = errors.New("cycle_duration must be positive")
	ErrBadTolerance   = errors.New("tolerance must be positive")
	ErrBadHold        = errors.New("hold_duration must not be negative")
	ErrBadFPS         = errors.New("fps must be between 1 and 240")
	ErrBadHoldPolicy  = errors.New("hold_policy must be first_contact or last_hit")
	ErrBadSweepPeriod = errors.New("server.sweep_interval must be positive")
)

// Config is the on-disk configuration of radar-scan
type Config struct {
	Scan      ScanConfig       `yaml:"scan"`
	Display   DisplayConfig    `yaml:"display"`
	Server    ServerConfig     `yaml:"server"`
	Locations []LocationConfig `yaml:"locations"`
}

// ScanConfig carries the engine timing parameters
type ScanConfig struct {
	CycleDuration  time.Duration `yaml:"cycle_duration"`
	Tolerance      float64       `yaml:"tolerance"`
	HoldDuration   time.Duration `yaml:"hold_duration"`
	SweptDetection bool          `yaml:"swept_detection"`
	HoldPolicy     string        `yaml:"hold_policy"` // first_contact | last_hit
	FPS            int           `yaml:"fps"`
}

// DisplayConfig controls the terminal view
type DisplayConfig struct {
	ReducedMotion bool `yaml:"reduced_motion"`
	Audio         bool `yaml:"audio"`
}

// ServerConfig controls the WebSocket snapshot feed; empty Listen disables it
type ServerConfig struct {
	Listen        string        `yaml:"listen"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LocationConfig is either a raw axis position or a lat/lng pair
type LocationConfig struct {
	ID       string   `yaml:"id"`
	Position *float64 `yaml:"position,omitempty"`
	Lat      *float64 `yaml:"lat,omitempty"`
	Lng      *float64 `yaml:"lng,omitempty"`
}

// Default returns the stock scan over the built-in city list
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			CycleDuration: engine.DefaultCycleDuration,
			Tolerance:     engine.DefaultTolerance,
			HoldDuration:  engine.DefaultHoldDuration,
			HoldPolicy:    engine.HoldFromFirstContact.String(),
			FPS:           60,
		},
		Display: DisplayConfig{Audio: true},
		Server:  ServerConfig{SweepInterval: 100 * time.Millisecond},
		Locations: []LocationConfig{
			city("San Francisco", 37.7749, -122.4194),
			city("New York", 40.7128, -74.0060),
			city("São Paulo", -23.5505, -46.6333),
			city("London", 51.5074, -0.1278),
			city("Lagos", 6.5244, 3.3792),
			city("Dubai", 25.2048, 55.2708),
			city("Mumbai", 19.0760, 72.8777),
			city("Singapore", 1.3521, 103.8198),
			city("Tokyo", 35.6762, 139.6503),
			city("Sydney", -33.8688, 151.2093),
		},
	}
}

func city(id string, lat, lng float64) LocationConfig {
	return LocationConfig{ID: id, Lat: &lat, Lng: &lng}
}

// Load reads a YAML file over the defaults and validates the result.
// A file that lists locations replaces the built-in list entirely; an
// explicit empty list runs the sweep with nothing to reveal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	defaults := cfg.Locations
	cfg.Locations = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Locations == nil {
		cfg.Locations = defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined
func (c *Config) Validate() error {
	var errs []error

	if c.Scan.CycleDuration <= 0 {
		errs = append(errs, ErrBadCycle)
	}
	if c.Scan.Tolerance <= 0 {
		errs = append(errs, ErrBadTolerance)
	}
	if c.Scan.HoldDuration < 0 {
		errs = append(errs, ErrBadHold)
	}
	if c.Scan.FPS < 1 || c.Scan.FPS > 240 {
		errs = append(errs, ErrBadFPS)
	}
	if _, err := ParseHoldPolicy(c.Scan.HoldPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Listen != "" && c.Server.SweepInterval <= 0 {
		errs = append(errs, ErrBadSweepPeriod)
	}

	seen := make(map[string]struct{}, len(c.Locations))
	for i, loc := range c.Locations {
		id := strings.TrimSpace(loc.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("locations[%d]: %w", i, ErrEmptyID))
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("locations[%d] %q: %w", i, id, ErrDuplicateID))
		}
		seen[id] = struct{}{}
		if loc.Position == nil && (loc.Lat == nil || loc.Lng == nil) {
			errs = append(errs, fmt.Errorf("locations[%d] %q: %w", i, id, ErrNoPosition))
		}
	}

	return errors.Join(errs...)
}

// ParseHoldPolicy maps the config spelling to an engine policy; empty means default
func ParseHoldPolicy(s string) (engine.HoldPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_contact":
		return engine.HoldFromFirstContact, nil
	case "last_hit":
		return engine.HoldFromLastHit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadHoldPolicy, s)
	}
}

// EngineConfig converts the scan section; call after Validate
func (c *Config) EngineConfig() engine.Config {
	policy, _ := ParseHoldPolicy(c.Scan.HoldPolicy)
	return engine.Config{
		CycleDuration:  c.Scan.CycleDuration,
		Tolerance:      c.Scan.Tolerance,
		HoldDuration:   c.Scan.HoldDuration,
		SweptDetection: c.Scan.SweptDetection,
		HoldPolicy:     policy,
	}
}

// FrameInterval is the frame period for the configured fps
func (c *Config) FrameInterval() time.Duration {
	if c.Scan.FPS <= 0 {
		return engine.DefaultFrameInterval
	}
	return time.Second / time.Duration(c.Scan.FPS)
}

// Marker is a resolved location in reference map space
type Marker struct {
	ID string
	X  float64 // 0..2000, also the scan axis position
	Y  float64 // 0..1000
}

// Resolve projects every location into map space. Raw positions without
// lat/lng are drawn on the equator.
func (c *Config) Resolve() []Marker {
	markers := make([]Marker, 0, len(c.Locations))
	for _, loc := range c.Locations {
		m := Marker{ID: strings.TrimSpace(loc.ID), Y: vmath.MapHeight / 2}
		if loc.Lat != nil && loc.Lng != nil {
			m.X, m.Y = vmath.Project(*loc.Lat, *loc.Lng)
		}
		if loc.Position != nil {
			m.X = *loc.Position
		}
		markers = append(markers, m)
	}
	return markers
}

// EngineLocations returns the scan axis view of the resolved markers
func EngineLocations(markers []Marker) []engine.Location {
	locs := make([]engine.Location, len(markers))
	for i, m := range markers {
		locs[i] = engine.Location{ID: m.ID, Position: m.X}
	}
	return locs
}
