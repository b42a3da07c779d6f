package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clementchew02/Timer/internal/engine"
	"github.com/clementchew02/Timer/internal/room"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	Rooms           []string      `yaml:"rooms"`
	DefaultDuration time.Duration `yaml:"default_duration"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	NATS            NATSConfig    `yaml:"nats"`
	Log             LogConfig     `yaml:"log"`
}

type NATSConfig struct {
	URL    string `yaml:"url"` // empty disables the bridge
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "console"
}

func Default() Config {
	return Config{
		Addr:            ":3001",
		Rooms:           []string{"Room A", "Room B", "Room C"},
		DefaultDuration: engine.DefaultDuration,
		TickInterval:    engine.DefaultTickInterval,
		AllowedOrigins:  []string{"http://localhost"},
		NATS:            NATSConfig{Prefix: "timer"},
		Log:             LogConfig{Level: "info", Format: "json"},
	}
}

// Load layers defaults, the optional YAML file at path, then TIMER_*
// environment variables (after loading a .env file if one exists).
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	cfg.Addr = getEnv("TIMER_ADDR", cfg.Addr)
	cfg.Rooms = getEnvAsList("TIMER_ROOMS", cfg.Rooms)
	cfg.AllowedOrigins = getEnvAsList("TIMER_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.NATS.URL = getEnv("TIMER_NATS_URL", cfg.NATS.URL)
	cfg.NATS.Prefix = getEnv("TIMER_NATS_PREFIX", cfg.NATS.Prefix)
	cfg.Log.Level = getEnv("TIMER_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("TIMER_LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.DefaultDuration, err = getEnvAsDuration("TIMER_DEFAULT_DURATION", cfg.DefaultDuration); err != nil {
		return err
	}
	if cfg.TickInterval, err = getEnvAsDuration("TIMER_TICK_INTERVAL", cfg.TickInterval); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must be set")
	}
	if len(c.Rooms) == 0 {
		return room.ErrNoRooms
	}
	seen := make(map[string]bool, len(c.Rooms))
	for _, r := range c.Rooms {
		if strings.TrimSpace(r) == "" {
			return errors.New("room names must not be blank")
		}
		if seen[r] {
			return fmt.Errorf("%w: %q", room.ErrDuplicateRoom, r)
		}
		seen[r] = true
	}
	if c.DefaultDuration <= 0 {
		return fmt.Errorf("default_duration must be positive, got %s", c.DefaultDuration)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	return nil
}

func (c Config) RoomIDs() []room.ID {
	ids := make([]room.ID, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		ids = append(ids, room.ID(r))
	}
	return ids
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDuration accepts Go durations ("90s") or bare milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
