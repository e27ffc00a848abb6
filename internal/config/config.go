// Package config loads server and CLI settings from an optional YAML file,
// then applies environment overrides. Call godotenv.Load before Load so that
// .env values are visible as environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds every setting of the server and the CLI.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	AI      AIConfig      `yaml:"ai"`
}

// BackendConfig locates the e-Fakture backend API.
type BackendConfig struct {
	URL        string        `yaml:"url"`
	CookieName string        `yaml:"cookie_name"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowed_origins"`
	JWTSecret      string `yaml:"jwt_secret"`
	CookieSecure   bool   `yaml:"cookie_secure"`
}

// SessionConfig selects where sessions are kept. DatabaseURL is only read
// when Store is "postgres".
type SessionConfig struct {
	Store       string        `yaml:"store"`
	TTL         time.Duration `yaml:"ttl"`
	DatabaseURL string        `yaml:"database_url"`
}

// AIConfig enables the draft assistant. An empty APIKey disables it.
type AIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:        "http://localhost:5000",
			CookieName: "eg_token",
			Timeout:    15 * time.Second,
		},
		Server: ServerConfig{
			Port:         "8080",
			CookieSecure: true,
		},
		Session: SessionConfig{
			Store: StoreMemory,
			TTL:   7 * 24 * time.Hour,
		},
		AI: AIConfig{
			Model: "gpt-4o",
		},
	}
}

// Load reads path (if non-empty) over the defaults and then applies environment
// overrides. A missing file at path is an error; pass "" to skip the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("BACKEND_URL", &c.Backend.URL)
	str("BACKEND_COOKIE_NAME", &c.Backend.CookieName)
	str("SERVER_PORT", &c.Server.Port)
	str("ALLOWED_ORIGINS", &c.Server.AllowedOrigins)
	str("JWT_SECRET", &c.Server.JWTSecret)
	str("SESSION_STORE", &c.Session.Store)
	str("DATABASE_URL", &c.Session.DatabaseURL)
	str("OPENAI_API_KEY", &c.AI.APIKey)
	str("OPENAI_MODEL", &c.AI.Model)

	if err := dur("BACKEND_TIMEOUT", &c.Backend.Timeout); err != nil {
		return err
	}
	if err := dur("SESSION_TTL", &c.Session.TTL); err != nil {
		return err
	}
	if v, ok := lookup("COOKIE_SECURE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		c.Server.CookieSecure = b
	}
	c.Session.Store = strings.ToLower(c.Session.Store)
	return nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend URL is required (BACKEND_URL)"))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("JWT secret is required (JWT_SECRET)"))
	}
	switch c.Session.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Session.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres session store requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q (want memory or postgres)", c.Session.Store))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend timeout must be positive (BACKEND_TIMEOUT)"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session TTL must be positive"))
	}
	return errors.Join(errs...)
}
