// Package config loads server configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = 8080
	defaultDBPath        = "data/snippets.db"
	defaultCacheTTL      = 5 * time.Minute
	defaultSweepInterval = time.Minute
	defaultShareRPS      = 5
	defaultShareBurst    = 20
	defaultLoginRPS      = 1
	defaultLoginBurst    = 5

	minJWTSecretLen = 32
)

type Config struct {
	Port         int    `yaml:"port"`
	DBPath       string `yaml:"db_path"`
	PublicOrigin string `yaml:"public_origin"`

	JWTSecret     string `yaml:"jwt_secret"`
	SecureCookies bool   `yaml:"secure_cookies"`

	GitHub GitHubConfig `yaml:"github"`

	// RedisURL enables the shared public-snippet cache. Empty means an
	// in-process cache.
	RedisURL string        `yaml:"redis_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// SweepInterval is how often lapsed share links are unpublished.
	// Zero disables the sweeper.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Executor  ExecutorConfig  `yaml:"executor"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether GitHub login can be offered.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type RateLimitConfig struct {
	ShareRPS   float64 `yaml:"share_rps"`
	ShareBurst int     `yaml:"share_burst"`
	LoginRPS   float64 `yaml:"login_rps"`
	LoginBurst int     `yaml:"login_burst"`
}

type ExecutorConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Port:          defaultPort,
		DBPath:        defaultDBPath,
		CacheTTL:      defaultCacheTTL,
		SweepInterval: defaultSweepInterval,
		RateLimit: RateLimitConfig{
			ShareRPS:   defaultShareRPS,
			ShareBurst: defaultShareBurst,
			LoginRPS:   defaultLoginRPS,
			LoginBurst: defaultLoginBurst,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds a Config. path may be empty, in which case only defaults and
// the environment apply. getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := decodeYAML(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if cfg.PublicOrigin == "" {
		cfg.PublicOrigin = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.PublicOrigin = strings.TrimRight(cfg.PublicOrigin, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(content []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	err := decoder.Decode(cfg)
	if errors.Is(err, io.EOF) {
		// empty file
		return nil
	}
	return err
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT value %q", v)
		}
		cfg.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("PUBLIC_ORIGIN"); v != "" {
		cfg.PublicOrigin = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := getenv("GITHUB_CLIENT_ID"); v != "" {
		cfg.GitHub.ClientID = v
	}
	if v := getenv("GITHUB_CLIENT_SECRET"); v != "" {
		cfg.GitHub.ClientSecret = v
	}
	if v := getenv("GITHUB_CALLBACK_URL"); v != "" {
		cfg.GitHub.CallbackURL = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("EXECUTOR_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid EXECUTOR_ENABLED value %q", v)
		}
		cfg.Executor.Enabled = enabled
	}
	if v := getenv("SECURE_COOKIES"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SECURE_COOKIES value %q", v)
		}
		cfg.SecureCookies = secure
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required (generate one with: openssl rand -hex 32)")
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("jwt_secret must be at least %d characters", minJWTSecretLen)
	}
	if c.CacheTTL < 0 || c.SweepInterval < 0 {
		return errors.New("cache_ttl and sweep_interval must not be negative")
	}
	if c.RateLimit.ShareRPS <= 0 || c.RateLimit.ShareBurst < 1 {
		return errors.New("rate_limit.share_rps and share_burst must be positive")
	}
	if c.RateLimit.LoginRPS <= 0 || c.RateLimit.LoginBurst < 1 {
		return errors.New("rate_limit.login_rps and login_burst must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q, expected text or json", c.LogFormat)
	}
	return nil
}

// SlogLevel converts LogLevel into a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
