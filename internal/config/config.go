// Package config loads and validates the gateway configuration from a yaml
// file plus STENCIL_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Trial counter policies. Lifetime keeps one counter per scope under a long
// TTL; RollingWindow resets the counter when the window key expires.
const (
	PolicyLifetime      = "lifetime"
	PolicyRollingWindow = "rolling_window"
)

// Identity modes, in the order a deployment resolves them.
const (
	ModePhone   = "phone"
	ModeAccount = "account"
	ModeDevice  = "device"
)

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// RedisConfig represents counter store connection configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QuotaConfig represents the quota and abuse-prevention policy knobs.
type QuotaConfig struct {
	// IdentityModes is the ordered list of identity modes the resolver
	// tries. The first mode that yields a scope wins.
	IdentityModes []string `mapstructure:"identity_modes" validate:"min=1,dive,oneof=phone account device"`

	PhonePrefix   string `mapstructure:"phone_prefix"`
	PhoneMinLen   int    `mapstructure:"phone_min_len"`
	PhoneMaxLen   int    `mapstructure:"phone_max_len"`
	DeviceMinLen  int    `mapstructure:"device_min_len"`
	AccountMaxLen int    `mapstructure:"account_max_len"`

	TrialPolicy  string        `mapstructure:"trial_policy" validate:"oneof=lifetime rolling_window"`
	TrialLimit   int           `mapstructure:"trial_limit" validate:"min=1"`
	TrialTTL     time.Duration `mapstructure:"trial_ttl"`
	WindowLength time.Duration `mapstructure:"window_length"`

	HourlyLimit int           `mapstructure:"hourly_limit" validate:"min=1"`
	BucketWidth time.Duration `mapstructure:"bucket_width"`

	DeviceCap int           `mapstructure:"device_cap" validate:"min=1"`
	DeviceTTL time.Duration `mapstructure:"device_ttl"`

	LeadTTL time.Duration `mapstructure:"lead_ttl"`
}

// GenerationConfig represents the upstream image generation backend.
type GenerationConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxPayloadChars int           `mapstructure:"max_payload_chars"`
}

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Generation GenerationConfig `mapstructure:"generation"`
	LogLevel   string           `mapstructure:"log_level"`
}

// Load reads configuration from the given file (optional) and the
// environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STENCIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", int64(6<<20))

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("quota.identity_modes", []string{ModePhone})
	v.SetDefault("quota.phone_prefix", "55")
	v.SetDefault("quota.phone_min_len", 12)
	v.SetDefault("quota.phone_max_len", 13)
	v.SetDefault("quota.device_min_len", 8)
	v.SetDefault("quota.account_max_len", 128)
	v.SetDefault("quota.trial_policy", PolicyLifetime)
	v.SetDefault("quota.trial_limit", 15)
	v.SetDefault("quota.trial_ttl", 180*24*time.Hour)
	v.SetDefault("quota.window_length", 25*time.Hour)
	v.SetDefault("quota.hourly_limit", 40)
	v.SetDefault("quota.bucket_width", time.Hour)
	v.SetDefault("quota.device_cap", 3)
	v.SetDefault("quota.device_ttl", 180*24*time.Hour)
	v.SetDefault("quota.lead_ttl", 365*24*time.Hour)

	v.SetDefault("generation.endpoint", "https://generativelanguage.googleapis.com")
	v.SetDefault("generation.model", "gemini-2.5-flash-image")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.timeout", 60*time.Second)
	v.SetDefault("generation.max_payload_chars", 4_500_000)
}

// Validate checks the configuration for values the engine cannot run with.
// Range and enum checks live in the struct tags; only cross-field rules are
// spelled out here.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Quota.BucketWidth <= 0 {
		return fmt.Errorf("quota.bucket_width must be positive")
	}
	if c.Quota.TrialPolicy == PolicyRollingWindow && c.Quota.WindowLength <= 0 {
		return fmt.Errorf("quota.window_length must be positive for rolling_window policy")
	}
	if c.Quota.PhoneMinLen > c.Quota.PhoneMaxLen {
		return fmt.Errorf("quota.phone_min_len exceeds quota.phone_max_len")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive")
	}
	return nil
}
