// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

// GatewayConfig describes the hosted payment page. The keys come from the
// environment only.
type GatewayConfig struct {
	MerchantID    string `yaml:"merchant_id"`
	ActionURL     string `yaml:"action_url"`
	Currency      string `yaml:"currency"`
	ReturnURL     string `yaml:"return_url"`
	CallbackURL   string `yaml:"callback_url"`
	DefaultRegion string `yaml:"default_region"`
	Timezone      string `yaml:"timezone"`

	SecretKey string `yaml:"-" envconfig:"SECRET_KEY"`
	VerifyKey string `yaml:"-" envconfig:"VERIFY_KEY"`
}

type EmailConfig struct {
	Region string `yaml:"region"`
	Sender string `yaml:"sender"`

	AccessKeyID     string `yaml:"-" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" envconfig:"SECRET_ACCESS_KEY"`
}

// Enabled reports whether receipts can be sent at all.
func (e EmailConfig) Enabled() bool {
	return e.AccessKeyID != "" && e.SecretAccessKey != "" && e.Region != "" && e.Sender != ""
}

type BookingConfig struct {
	SlotMinutes  int    `yaml:"slot_minutes"`
	DefaultOpen  string `yaml:"default_open"`
	DefaultClose string `yaml:"default_close"`
	PageSize     int    `yaml:"page_size"`
}

// RateLimitConfig throttles the public write endpoints per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	TrustProxy        bool `yaml:"trust_proxy"`
}

type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Environment     string        `yaml:"environment"`
		Port            int           `yaml:"port"`
		BaseURL         string        `yaml:"base_url"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Email     EmailConfig     `yaml:"email"`
	Booking   BookingConfig   `yaml:"booking"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.LoadSecrets(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not read the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadSecrets reads GATEWAY_* and AWS_* variables into the config.
func (c *Config) LoadSecrets() error {
	if err := envconfig.Process("GATEWAY", &c.Gateway); err != nil {
		return fmt.Errorf("error loading gateway secrets: %w", err)
	}
	if err := envconfig.Process("AWS", &c.Email); err != nil {
		return fmt.Errorf("error loading email credentials: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Gateway.Currency == "" {
		c.Gateway.Currency = "MYR"
	}
	if c.Gateway.DefaultRegion == "" {
		c.Gateway.DefaultRegion = "MY"
	}
	if c.Gateway.Timezone == "" {
		c.Gateway.Timezone = "Asia/Kuala_Lumpur"
	}
	if c.Gateway.ActionURL == "" {
		c.Gateway.ActionURL = "https://pay.fiuu.com/RMS/pay/%s/"
	}
	if c.Booking.SlotMinutes == 0 {
		c.Booking.SlotMinutes = 60
	}
	if c.Booking.DefaultOpen == "" {
		c.Booking.DefaultOpen = "06:00"
	}
	if c.Booking.DefaultClose == "" {
		c.Booking.DefaultClose = "22:00"
	}
	if c.Booking.PageSize == 0 {
		c.Booking.PageSize = 10
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 30
	}
}

// Location resolves the gateway timezone used to read settlement times.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Gateway.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway timezone %q: %w", c.Gateway.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Gateway.MerchantID == "" {
		return fmt.Errorf("gateway merchant_id is required")
	}
	if c.Gateway.SecretKey == "" {
		return fmt.Errorf("gateway secret key is required")
	}
	if c.Booking.SlotMinutes < 0 {
		return fmt.Errorf("booking slot_minutes must be positive")
	}
	if c.Booking.PageSize < 0 {
		return fmt.Errorf("booking page_size must be positive")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit requests_per_minute must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}
