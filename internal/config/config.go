package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Challenge struct {
		Timezone   string `yaml:"timezone"`
		CutoffHour int    `yaml:"cutoff_hour"`
		Generate   bool   `yaml:"generate"`
	} `yaml:"challenge"`
	Piston struct {
		URL             string `yaml:"url"`
		Language        string `yaml:"language"`
		FallbackVersion string `yaml:"fallback_version"`
		Timeout         string `yaml:"timeout"`
		RuntimeTTL      string `yaml:"runtime_ttl"`
	} `yaml:"piston"`
	Notifications struct {
		TTL string `yaml:"ttl"`
	} `yaml:"notifications"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Mode = "dev"
	cfg.Store.Driver = DriverMemory
	cfg.Challenge.Timezone = "UTC"
	cfg.Challenge.Generate = true
	cfg.Piston.URL = "https://emkc.org/api/v2/piston"
	cfg.Piston.Language = "python"
	cfg.Piston.FallbackVersion = "3.10.0"
	cfg.Piston.Timeout = "10s"
	cfg.Piston.RuntimeTTL = "1h"
	cfg.Notifications.TTL = "168h"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides. A missing file is not an error. A .env file in the
// working directory is loaded first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"PORT":         &cfg.Server.Port,
		"STORE_DRIVER": &cfg.Store.Driver,
		"REDIS_ADDR":   &cfg.Redis.Addr,
		"POSTGRES_URL": &cfg.Postgres.URL,
		"JWT_SECRET":   &cfg.Auth.JWTSecret,
		"LOG_MODE":     &cfg.Log.Mode,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("CHALLENGE_CUTOFF_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil {
			cfg.Challenge.CutoffHour = h
		}
	}
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("store driver redis requires redis.addr")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("store driver postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Challenge.CutoffHour < 0 || c.Challenge.CutoffHour > 23 {
		return fmt.Errorf("challenge.cutoff_hour out of range: %d", c.Challenge.CutoffHour)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves challenge.timezone; empty means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Challenge.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Challenge.Timezone)
	if err != nil {
		return nil, fmt.Errorf("challenge.timezone: %w", err)
	}
	return loc, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
