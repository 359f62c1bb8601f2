// Package config loads the relay configuration from the environment, an
// optional .env file and an optional YAML overlay, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config holds every runtime setting of the relay.
type Config struct {
	Port string `env:"SERVER_PORT,default=:8080" validate:"required"`

	JWTSecret   string        `env:"JWT_SECRET,required=true" validate:"required"`
	JWTIssuer   string        `env:"JWT_ISSUER,default=securechat"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,default=24h" validate:"gt=0"`
	TokenLeeway time.Duration `env:"TOKEN_LEEWAY,default=0s" validate:"gte=0"`

	// AllowedOrigins is a comma separated list; "*" allows every origin.
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`

	MaxMessageSize int64 `env:"MAX_MESSAGE_SIZE,default=4096" validate:"gt=0,lte=1048576"`
	SendBufferSize int   `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`

	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5" validate:"gt=0"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s" validate:"gt=0"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`

	ConfigFile string `env:"CONFIG_FILE"`
}

// RateLimit defines the parameters for per-connection message rate limiting.
type RateLimit struct {
	Burst          int
	RefillInterval time.Duration
}

// Default returns the configuration used when nothing is set. JWTSecret is
// left empty and must be provided by the caller.
func Default() Config {
	return Config{
		Port:                    ":8080",
		JWTIssuer:               "securechat",
		TokenTTL:                24 * time.Hour,
		AllowedOrigins:          "http://localhost:8080",
		MaxMessageSize:          4096,
		SendBufferSize:          256,
		RateLimitBurst:          5,
		RateLimitRefillInterval: time.Second,
		ShutdownTimeout:         10 * time.Second,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// Load reads the given dotenv files (".env" when none are named), the process
// environment and, when CONFIG_FILE is set, the YAML overlay it points to.
// Missing dotenv files are ignored.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.ConfigFile != "" {
		overlaid, err := LoadFile(cfg, cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = *overlaid
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c Config) Origins() []string {
	return ParseOrigins(c.AllowedOrigins)
}

// RateLimit returns the per-connection rate limit settings.
func (c Config) RateLimit() RateLimit {
	return RateLimit{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefillInterval}
}

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(origins string) []string {
	parts := lo.Map(strings.Split(origins, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}
