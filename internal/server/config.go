// Package server provides configuration helpers that define runtime defaults,
// validation, and limits for the GoChat service.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/gochat-relay/internal/relay"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst" validate:"gte=0"`
	RefillInterval time.Duration `yaml:"refill_interval" validate:"gte=0"`
}

// ChatConfig holds the presence and history limits.
type ChatConfig struct {
	MaxUsers    int    `yaml:"max_users" validate:"gte=0"`
	MaxHistory  int    `yaml:"max_history" validate:"gte=0,lte=10000"`
	Placeholder string `yaml:"placeholder" validate:"max=64"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `yaml:"port"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	MaxMessageSize  int64           `yaml:"max_message_size" validate:"gte=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Chat            ChatConfig      `yaml:"chat"`
	LogLevel        string          `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	MetricsInterval time.Duration   `yaml:"metrics_interval" validate:"gte=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" validate:"gte=0"`
}

// envConfig mirrors the environment variables. Empty values leave the file
// or default value alone.
type envConfig struct {
	Port                   string `env:"SERVER_PORT"`
	AllowedOrigins         string `env:"ALLOWED_ORIGINS"`
	MaxMessageSize         string `env:"MAX_MESSAGE_SIZE"`
	RateLimitBurst         string `env:"RATE_LIMIT_BURST"`
	RateLimitRefillSeconds string `env:"RATE_LIMIT_REFILL_INTERVAL"`
	MaxUsers               string `env:"MAX_USERS"`
	MaxHistory             string `env:"MAX_HISTORY"`
	Placeholder            string `env:"PLACEHOLDER_NAME"`
	LogLevel               string `env:"LOG_LEVEL"`
	MetricsSeconds         string `env:"METRICS_INTERVAL"`
	ShutdownSeconds        string `env:"SHUTDOWN_TIMEOUT"`
}

var validate = validator.New()

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Chat: ChatConfig{
			MaxUsers:    10,
			MaxHistory:  20,
			Placeholder: relay.DefaultPlaceholder,
		},
		LogLevel:        "INFO",
		MetricsInterval: time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, and the process environment, in that order. The result is
// validated and sanitized.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	var overrides envConfig
	if _, err := env.UnmarshalFromEnviron(&overrides); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	overrides.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized, nil
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() *Config {
	cfg, err := LoadConfig("")
	if err != nil {
		return NewConfig()
	}
	return cfg
}

// Validate reports configuration values that cannot be repaired by
// falling back to a default.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RelayConfig returns the core configuration derived from c.
func (c Config) RelayConfig() relay.Config {
	return relay.Config{
		MaxUsers:    c.Chat.MaxUsers,
		MaxHistory:  c.Chat.MaxHistory,
		Placeholder: c.Chat.Placeholder,
	}
}

func (e envConfig) apply(cfg *Config) {
	if e.Port != "" {
		cfg.Port = e.Port
	}
	if e.AllowedOrigins != "" {
		cfg.AllowedOrigins = parseOrigins(e.AllowedOrigins)
	}
	if size, ok := parsePositive(e.MaxMessageSize); ok {
		cfg.MaxMessageSize = int64(size)
	}
	if burst, ok := parsePositive(e.RateLimitBurst); ok {
		cfg.RateLimit.Burst = burst
	}
	if seconds, ok := parsePositive(e.RateLimitRefillSeconds); ok {
		cfg.RateLimit.RefillInterval = time.Duration(seconds) * time.Second
	}
	// Limits may be zero or negative here; Validate rejects negatives.
	if users, err := strconv.Atoi(e.MaxUsers); err == nil {
		cfg.Chat.MaxUsers = users
	}
	if size, err := strconv.Atoi(e.MaxHistory); err == nil {
		cfg.Chat.MaxHistory = size
	}
	if e.Placeholder != "" {
		cfg.Chat.Placeholder = e.Placeholder
	}
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}
	if seconds, err := strconv.Atoi(e.MetricsSeconds); err == nil && seconds >= 0 {
		cfg.MetricsInterval = time.Duration(seconds) * time.Second
	}
	if seconds, ok := parsePositive(e.ShutdownSeconds); ok {
		cfg.ShutdownTimeout = time.Duration(seconds) * time.Second
	}
}

func parsePositive(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if strings.TrimSpace(cfg.Chat.Placeholder) == "" {
		cfg.Chat.Placeholder = relay.DefaultPlaceholder
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
