package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/ini.v1"
)

// Config holds all user-tunable settings. Values come from Settings.ini
// and may be overridden through AUTOQUEST_* environment variables.
type Config struct {
	// Resources
	TemplatesRoot string `env:"AUTOQUEST_TEMPLATES_ROOT"`
	TemplatesFile string `env:"AUTOQUEST_TEMPLATES_FILE"` // optional YAML registry; empty means path convention only
	DatabasePath  string `env:"AUTOQUEST_DATABASE_PATH"`

	// Session
	CharacterName string `env:"AUTOQUEST_CHARACTER"`
	MaxCycles     int    `env:"AUTOQUEST_MAX_CYCLES"`

	// Loop timing
	CycleInterval time.Duration `env:"AUTOQUEST_CYCLE_INTERVAL"`
	Cooldown      time.Duration `env:"AUTOQUEST_COOLDOWN"`

	// Input pacing
	MoveDuration time.Duration `env:"AUTOQUEST_MOVE_DURATION"`
	KeyHold      time.Duration `env:"AUTOQUEST_KEY_HOLD"`

	// Logging
	LogLevel string `env:"AUTOQUEST_LOG_LEVEL"`
}

// NewDefault returns the built-in defaults
func NewDefault() *Config {
	return &Config{
		TemplatesRoot: "resources/templates",
		TemplatesFile: "",
		DatabasePath:  "data/autoquest.db",
		CharacterName: "Traveler",
		MaxCycles:     0,
		CycleInterval: 250 * time.Millisecond,
		Cooldown:      1500 * time.Millisecond,
		MoveDuration:  150 * time.Millisecond,
		KeyHold:       50 * time.Millisecond,
		LogLevel:      "INFO",
	}
}

// LoadFromINI reads Settings.ini, falling back to defaults for missing
// keys, then applies environment overrides.
func LoadFromINI(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	d := NewDefault()
	section := cfg.Section("UserSettings")

	c := &Config{
		TemplatesRoot: section.Key("templatesRoot").MustString(d.TemplatesRoot),
		TemplatesFile: section.Key("templatesFile").MustString(d.TemplatesFile),
		DatabasePath:  section.Key("databasePath").MustString(d.DatabasePath),
		CharacterName: section.Key("characterName").MustString(d.CharacterName),
		MaxCycles:     section.Key("maxCycles").MustInt(d.MaxCycles),
		CycleInterval: section.Key("cycleInterval").MustDuration(d.CycleInterval),
		Cooldown:      section.Key("cooldown").MustDuration(d.Cooldown),
		MoveDuration:  section.Key("moveDuration").MustDuration(d.MoveDuration),
		KeyHold:       section.Key("keyHold").MustDuration(d.KeyHold),
		LogLevel:      section.Key("logLevel").MustString(d.LogLevel),
	}

	if err := ApplyEnv(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overlays AUTOQUEST_* environment variables onto c
func ApplyEnv(c *Config) error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// Validate checks the settings that would otherwise fail deep inside the
// loop.
func (c *Config) Validate() error {
	if c.TemplatesRoot == "" {
		return fmt.Errorf("templatesRoot must not be empty")
	}
	if c.CharacterName == "" {
		return fmt.Errorf("characterName must not be empty")
	}
	if c.CycleInterval < 0 || c.Cooldown < 0 {
		return fmt.Errorf("timing values must not be negative")
	}
	if c.MaxCycles < 0 {
		return fmt.Errorf("maxCycles must not be negative")
	}
	return nil
}
