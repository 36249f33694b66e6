// Package config loads the run configuration for flagsweep from TOML.
//
// A missing key keeps its default. Unknown keys are rejected so a typo in a
// run file fails loudly instead of silently running with defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/roach88/flagsweep/internal/ir"
)

// Config is the complete run configuration.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Perception PerceptionConfig `toml:"perception"`
	Journal    JournalConfig    `toml:"journal"`
	Logging    LoggingConfig    `toml:"logging"`
	Schemas    SchemasConfig    `toml:"schemas"`
}

type EngineConfig struct {
	TickInterval time.Duration `toml:"tick_interval"`
	Order        []string      `toml:"order"` // sweep order, priority names
	Ticks        int           `toml:"ticks"` // 0 = run until interrupted
}

type PerceptionConfig struct {
	FadeDuration time.Duration `toml:"fade_duration"` // sound fade when soundFadeDuration is set
}

type JournalConfig struct {
	Path string `toml:"path"` // empty = in-memory journal
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // "text" or "json"
}

type SchemasConfig struct {
	Files []string `toml:"files"` // CUE files with extra owner schemas
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			TickInterval: 16 * time.Millisecond,
			Order:        []string{"objects", "perception"},
		},
		Perception: PerceptionConfig{
			FadeDuration: 250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML text over the defaults. Used for inline configs in
// tests and scenarios.
func Decode(data string) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse config: unknown key %s", undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.tick_interval must be positive, got %s", c.Engine.TickInterval))
	}
	if c.Engine.Ticks < 0 {
		errs = append(errs, fmt.Errorf("engine.ticks must not be negative, got %d", c.Engine.Ticks))
	}
	if _, err := c.Order(); err != nil {
		errs = append(errs, err)
	}
	if c.Perception.FadeDuration < 0 {
		errs = append(errs, fmt.Errorf("perception.fade_duration must not be negative, got %s", c.Perception.FadeDuration))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Order parses engine.order. Every priority must appear exactly once.
func (c *Config) Order() ([]ir.Priority, error) {
	order := make([]ir.Priority, 0, len(c.Engine.Order))
	seen := make(map[ir.Priority]bool, len(c.Engine.Order))
	for _, name := range c.Engine.Order {
		p, err := ir.ParsePriority(name)
		if err != nil {
			return nil, fmt.Errorf("engine.order: %w", err)
		}
		if seen[p] {
			return nil, fmt.Errorf("engine.order: %s listed twice", p)
		}
		seen[p] = true
		order = append(order, p)
	}
	for _, p := range ir.AllPriorities() {
		if !seen[p] {
			return nil, fmt.Errorf("engine.order: missing %s", p)
		}
	}
	return order, nil
}

// Level parses logging.level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
