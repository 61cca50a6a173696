package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithEnvSecret(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{"JWT_SECRET": testSecret}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/snippets.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "http://localhost:8080", cfg.PublicOrigin)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHub.CallbackURL)
	assert.False(t, cfg.GitHub.Enabled())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_RequiresSecret(t *testing.T) {
	_, err := Load("", envMap(nil))
	assert.ErrorContains(t, err, "jwt_secret is required")

	_, err = Load("", envMap(map[string]string{"JWT_SECRET": "short"}))
	assert.ErrorContains(t, err, "at least 32")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
port: 9000
db_path: /tmp/vault.db
jwt_secret: `+testSecret+`
public_origin: https://snippets.example.com/
cache_ttl: 30s
sweep_interval: 10m
github:
  client_id: yaml-id
  client_secret: yaml-secret
rate_limit:
  share_rps: 2
  share_burst: 4
  login_rps: 0.5
  login_burst: 3
executor:
  enabled: true
log_level: debug
log_format: json
`)

	cfg, err := Load(path, envMap(map[string]string{
		"GITHUB_CLIENT_ID": "env-id",
		"REDIS_URL":        "redis://localhost:6379/0",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/tmp/vault.db", cfg.DBPath)
	assert.Equal(t, "https://snippets.example.com", cfg.PublicOrigin, "trailing slash trimmed")
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "env-id", cfg.GitHub.ClientID, "env overrides yaml")
	assert.Equal(t, "yaml-secret", cfg.GitHub.ClientSecret)
	assert.True(t, cfg.GitHub.Enabled())
	assert.Equal(t, "http://localhost:9000/auth/github/callback", cfg.GitHub.CallbackURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 0.5, cfg.RateLimit.LoginRPS)
	assert.True(t, cfg.Executor.Enabled)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path, envMap(map[string]string{"JWT_SECRET": testSecret}))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{"unknown field", "prot: 80\n", nil, "field prot not found"},
		{"bad port env", "", map[string]string{"PORT": "eighty"}, "invalid PORT"},
		{"port out of range", "port: 70000\n", nil, "invalid port"},
		{"bad executor flag", "", map[string]string{"EXECUTOR_ENABLED": "maybe"}, "invalid EXECUTOR_ENABLED"},
		{"bad log level", "log_level: loud\n", nil, "invalid log_level"},
		{"bad log format", "log_format: xml\n", nil, "invalid log_format"},
		{"zero burst", "rate_limit:\n  share_burst: 0\n", nil, "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{"JWT_SECRET": testSecret}
			for k, v := range tt.env {
				env[k] = v
			}
			path := ""
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}
			_, err := Load(path, envMap(env))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	assert.ErrorContains(t, err, "read config file")
}
