package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// envPrefix namespaces environment overrides, e.g. RESERVOIR_API_BASE_URL.
const envPrefix = "RESERVOIR"

// Config holds all configuration for our application
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Site    SiteConfig    `mapstructure:"site"`
	Poll    PollConfig    `mapstructure:"poll"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds the remote telemetry endpoint and its credentials.
type APIConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	Username       string  `mapstructure:"username"`
	Password       string  `mapstructure:"password"`
	DeviceID       string  `mapstructure:"device_id"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	CacheSize      int     `mapstructure:"cache_size"`
}

type SiteConfig struct {
	User     string `mapstructure:"user"`
	Label    string `mapstructure:"label"`
	Timezone string `mapstructure:"timezone"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ServerConfig covers the HTTP and gRPC listeners. The rate limit applies to
// inbound requests on both.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	GRPCPort       int           `mapstructure:"grpc_port"`
	MaxRange       time.Duration `mapstructure:"max_range"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var requiredKeys = []string{
	"api.base_url",
	"api.username",
	"api.password",
	"api.device_id",
}

// Load reads configuration from an optional YAML file, environment variables
// and command-line flags, in increasing order of precedence.
// A missing file is not an error; a malformed one is.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks that every required value is present and usable.
func (c *Config) Validate() error {
	values := map[string]string{
		"api.base_url":  c.API.BaseURL,
		"api.username":  c.API.Username,
		"api.password":  c.API.Password,
		"api.device_id": c.API.DeviceID,
	}

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if _, err := c.Site.Location(); err != nil {
		return fmt.Errorf("%w: site.timezone: %v", ErrInvalidConfig, err)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: poll.interval must be positive", ErrInvalidConfig)
	}
	if c.API.CacheSize <= 0 {
		return fmt.Errorf("%w: api.cache_size must be positive", ErrInvalidConfig)
	}
	if c.Server.RateLimit <= 0 || c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: server.rate_limit and server.rate_limit_burst must be positive", ErrInvalidConfig)
	}

	return nil
}

// Location resolves the site timezone.
func (s SiteConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// RegisterFlags declares the command-line overrides understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Int("port", 0, "HTTP server port")
	flags.Int("grpc-port", 0, "gRPC health server port")
	flags.Duration("poll-interval", 0, "interval between background polls")
}

var flagKeys = map[string]string{
	"log-level":     "logging.level",
	"port":          "server.port",
	"grpc-port":     "server.grpc_port",
	"poll-interval": "poll.interval",
}

// bindFlags only binds flags that were explicitly set, so zero-valued flag
// defaults never shadow file or env values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_limit_burst", 10)
	v.SetDefault("api.cache_size", 128)

	v.SetDefault("site.user", "operator")
	v.SetDefault("site.label", "Reservatório")
	v.SetDefault("site.timezone", "America/Sao_Paulo")

	v.SetDefault("poll.interval", 4*time.Minute)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.max_range", 2*365*24*time.Hour)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
