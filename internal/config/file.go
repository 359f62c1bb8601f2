package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOverlay mirrors the subset of settings that may come from CONFIG_FILE.
// Absent keys leave the base value untouched.
type fileOverlay struct {
	Port           *string   `yaml:"port"`
	AllowedOrigins []string  `yaml:"allowed_origins"`
	MaxMessageSize *int64    `yaml:"max_message_size"`
	SendBufferSize *int      `yaml:"send_buffer_size"`
	RateLimit      *struct {
		Burst          *int           `yaml:"burst"`
		RefillInterval *time.Duration `yaml:"refill_interval"`
	} `yaml:"rate_limit"`
	Log *struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

// LoadFile returns base overlaid with the YAML document at path. Secrets are
// never read from the file.
func LoadFile(base Config, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg := base
	overlay.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (o fileOverlay) apply(cfg *Config) {
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.AllowedOrigins != nil {
		cfg.AllowedOrigins = strings.Join(o.AllowedOrigins, ",")
	}
	if o.MaxMessageSize != nil {
		cfg.MaxMessageSize = *o.MaxMessageSize
	}
	if o.SendBufferSize != nil {
		cfg.SendBufferSize = *o.SendBufferSize
	}
	if o.RateLimit != nil {
		if o.RateLimit.Burst != nil {
			cfg.RateLimitBurst = *o.RateLimit.Burst
		}
		if o.RateLimit.RefillInterval != nil {
			cfg.RateLimitRefillInterval = *o.RateLimit.RefillInterval
		}
	}
	if o.Log != nil {
		if o.Log.Level != nil {
			cfg.LogLevel = *o.Log.Level
		}
		if o.Log.Format != nil {
			cfg.LogFormat = *o.Log.Format
		}
	}
}
