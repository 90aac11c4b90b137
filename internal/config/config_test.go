package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
api:
  base_url: "https://telemetry.example.com/api"
  username: "tenant@example.com"
  password: "secret"
  device_id: "7f1c2a40-0000-0000-0000-000000000001"
  cache_size: 64

site:
  user: "Usuario"
  label: "Lavadeira"

poll:
  interval: 30s

server:
  port: 9090

logging:
  level: "debug"
  format: "text"
`)

	config, err := Load(configPath, nil)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "https://telemetry.example.com/api", config.API.BaseURL)
	assert.Equal(t, "7f1c2a40-0000-0000-0000-000000000001", config.API.DeviceID)
	assert.Equal(t, 64, config.API.CacheSize)
	assert.Equal(t, "Lavadeira", config.Site.Label)
	assert.Equal(t, 30*time.Second, config.Poll.Interval)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "debug", config.Logging.Level)

	// defaults
	assert.Equal(t, 5.0, config.API.RateLimit)
	assert.Equal(t, 10, config.API.RateLimitBurst)
	assert.Equal(t, "America/Sao_Paulo", config.Site.Timezone)
	assert.Equal(t, 50051, config.Server.GRPCPort)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 10.0, config.Server.RateLimit)
	assert.Equal(t, 20, config.Server.RateLimitBurst)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("RESERVOIR_API_BASE_URL", "https://env.example.com/api")
	t.Setenv("RESERVOIR_API_USERNAME", "env-user")
	t.Setenv("RESERVOIR_API_PASSWORD", "env-pass")
	t.Setenv("RESERVOIR_API_DEVICE_ID", "env-device")
	t.Setenv("RESERVOIR_POLL_INTERVAL", "1m")

	configPath := writeConfig(t, `
api:
  base_url: "https://file.example.com/api"
`)

	config, err := Load(configPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/api", config.API.BaseURL)
	assert.Equal(t, "env-user", config.API.Username)
	assert.Equal(t, "env-device", config.API.DeviceID)
	assert.Equal(t, time.Minute, config.Poll.Interval)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("RESERVOIR_API_BASE_URL", "https://env.example.com/api")
	t.Setenv("RESERVOIR_API_USERNAME", "env-user")
	t.Setenv("RESERVOIR_API_PASSWORD", "env-pass")
	t.Setenv("RESERVOIR_API_DEVICE_ID", "env-device")

	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "env-device", config.API.DeviceID)
	assert.Equal(t, 4*time.Minute, config.Poll.Interval)
}

func TestLoadWithFlags(t *testing.T) {
	configPath := writeConfig(t, `
api:
  base_url: "https://file.example.com/api"
  username: "user"
  password: "pass"
  device_id: "device"
server:
  port: 9090
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log-level=warn", "--poll-interval=2m"}))

	config, err := Load(configPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, 2*time.Minute, config.Poll.Interval)
	// unset flags leave file values alone
	assert.Equal(t, 9090, config.Server.Port)
}

func TestLoadMissingRequired(t *testing.T) {
	configPath := writeConfig(t, `
api:
  base_url: "https://file.example.com/api"
  username: "user"
`)

	config, err := Load(configPath, nil)
	require.Error(t, err)
	assert.Nil(t, config)
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "api.password, api.device_id")
}

func TestLoadMalformedFile(t *testing.T) {
	configPath := writeConfig(t, "api: [unterminated\n")

	_, err := Load(configPath, nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			API: APIConfig{
				BaseURL:   "https://telemetry.example.com/api",
				Username:  "user",
				Password:  "pass",
				DeviceID:  "device",
				CacheSize: 10,
			},
			Site:   SiteConfig{Timezone: "America/Sao_Paulo"},
			Poll:   PollConfig{Interval: time.Minute},
			Server: ServerConfig{RateLimit: 10, RateLimitBurst: 20},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "blank base url", mutate: func(c *Config) { c.API.BaseURL = "  " }, wantErr: ErrMissingConfig},
		{name: "unknown timezone", mutate: func(c *Config) { c.Site.Timezone = "Mars/Olympus" }, wantErr: ErrInvalidConfig},
		{name: "zero interval", mutate: func(c *Config) { c.Poll.Interval = 0 }, wantErr: ErrInvalidConfig},
		{name: "zero cache", mutate: func(c *Config) { c.API.CacheSize = 0 }, wantErr: ErrInvalidConfig},
		{name: "zero inbound rate", mutate: func(c *Config) { c.Server.RateLimit = 0 }, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
