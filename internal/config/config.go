// Package config holds the workset daemon configuration: defaults, an
// optional YAML file, and environment overrides, applied in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/salthouse/workset/internal/lifecycle"
)

// Config holds all workset configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Pressure PressureConfig `yaml:"pressure"`
	Sim      SimConfig      `yaml:"sim"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	ImmediateLimit  int `yaml:"immediate_limit"`
	ActiveLimit     int `yaml:"active_limit"`
	BackgroundLimit int `yaml:"background_limit"`

	// CheckIntervalMS rate-limits the consistency check. Zero checks on
	// every destructive call.
	CheckIntervalMS int `yaml:"check_interval_ms"`

	// StalenessSec is how long an active entry may idle before a
	// rebalance pushes it down.
	StalenessSec int `yaml:"staleness_sec"`
}

type PressureConfig struct {
	// IntervalSec is the memory sampling period.
	IntervalSec int `yaml:"interval_sec"`

	// Manual fixes the pressure at a value in [0,1]; negative means live
	// system sampling.
	Manual float64 `yaml:"manual"`
}

type SimConfig struct {
	Ticks    int   `yaml:"ticks"`
	Seed     int64 `yaml:"seed"`
	Entities int   `yaml:"entities"`
}

// Default returns a Config with production defaults. Cache numbers come
// straight from the lifecycle package so the two never drift.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37710,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Cache: CacheConfig{
			ImmediateLimit:  lifecycle.DefaultImmediateLimit,
			ActiveLimit:     lifecycle.DefaultActiveLimit,
			BackgroundLimit: lifecycle.DefaultBackgroundLimit,
			CheckIntervalMS: int(lifecycle.DefaultCheckInterval / time.Millisecond),
			StalenessSec:    int(lifecycle.DefaultStalenessWindow / time.Second),
		},
		Pressure: PressureConfig{
			IntervalSec: 5,
			Manual:      -1,
		},
		Sim: SimConfig{
			Ticks:    30,
			Seed:     42,
			Entities: 24,
		},
	}
}

// Load builds the configuration: defaults first, then the YAML file at
// path if one is given, then environment overrides. A .env file in the
// working directory is folded into the environment before the overrides
// are read; a missing .env is fine.
func Load(path string) (Config, error) {
	godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WORKSET_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("WORKSET_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("WORKSET_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("WORKSET_PRESSURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Pressure.Manual = f
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Cache.ImmediateLimit < 0 || c.Cache.ActiveLimit < 0 || c.Cache.BackgroundLimit < 0 {
		return fmt.Errorf("config: cache limits must not be negative")
	}
	if c.Pressure.Manual > 1 {
		return fmt.Errorf("config: pressure.manual %v above 1.0; use a value in [0,1] or negative for live sampling", c.Pressure.Manual)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Lifecycle converts the cache section into the manager's configuration.
func (c CacheConfig) Lifecycle() lifecycle.Config {
	return lifecycle.Config{
		BaseImmediateLimit:  c.ImmediateLimit,
		BaseActiveLimit:     c.ActiveLimit,
		BaseBackgroundLimit: c.BackgroundLimit,
		CheckInterval:       time.Duration(c.CheckIntervalMS) * time.Millisecond,
		StalenessWindow:     time.Duration(c.StalenessSec) * time.Second,
	}
}

// Interval returns the pressure sampling period as a duration.
func (p PressureConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSec) * time.Second
}
