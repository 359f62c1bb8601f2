package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/securechat/internal/logging"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "JWT_ISSUER", "TOKEN_TTL", "TOKEN_LEEWAY", "ALLOWED_ORIGINS",
		"MAX_MESSAGE_SIZE", "SEND_BUFFER_SIZE", "RATE_LIMIT_BURST", "RATE_LIMIT_REFILL_INTERVAL",
		"SHUTDOWN_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)

	want := Default()
	want.JWTSecret = "s3cret"
	req.Equal(want, *cfg)
}

func TestLoad_FromEnvironment(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)

	req.Equal(":9090", cfg.Port)
	req.Equal([]string{"https://a.example", "https://b.example"}, cfg.Origins())
	req.EqualValues(1024, cfg.MaxMessageSize)
	req.Equal(RateLimit{Burst: 10, RefillInterval: 2 * time.Second}, cfg.RateLimit())
	req.Equal("json", cfg.LogFormat)
}

func TestLoad_DotenvFile(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")
	req.NoError(os.Unsetenv("JWT_SECRET"))

	path := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(path, []byte("JWT_SECRET=from-dotenv\nSERVER_PORT=:7070\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("SERVER_PORT")
	})

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal("from-dotenv", cfg.JWTSecret)
	req.Equal(":7070", cfg.Port)
}

func TestLoad_MissingSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.JWTSecret = "s"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with secret", func(*Config) {}, false},
		{"empty secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"zero message size", func(c *Config) { c.MaxMessageSize = 0 }, true},
		{"huge message size", func(c *Config) { c.MaxMessageSize = 1 << 30 }, true},
		{"zero buffer", func(c *Config) { c.SendBufferSize = 0 }, true},
		{"zero burst", func(c *Config) { c.RateLimitBurst = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"negative leeway", func(c *Config) { c.TokenLeeway = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	require.Equal(t, []string{"a", "b", "*"}, ParseOrigins(" a,,b , * "))
	require.Empty(t, ParseOrigins(""))
}

const overlayYAML = `
allowed_origins:
  - https://chat.example
  - https://admin.example
rate_limit:
  burst: 20
  refill_interval: 5s
log:
  level: debug
`

func TestLoadFile_Overlay(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	req.NoError(os.WriteFile(path, []byte(overlayYAML), 0o600))

	base := Default()
	base.JWTSecret = "s"

	cfg, err := LoadFile(base, path)
	req.NoError(err)
	req.Equal([]string{"https://chat.example", "https://admin.example"}, cfg.Origins())
	req.Equal(20, cfg.RateLimitBurst)
	req.Equal(5*time.Second, cfg.RateLimitRefillInterval)
	req.Equal("debug", cfg.LogLevel)
	req.Equal(base.Port, cfg.Port)
	req.Equal("s", cfg.JWTSecret)
}

func TestLoadFile_InvalidValues(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	req.NoError(os.WriteFile(path, []byte("rate_limit:\n  burst: -1\n"), 0o600))

	base := Default()
	base.JWTSecret = "s"

	_, err := LoadFile(base, path)
	req.ErrorIs(err, ErrInvalidConfig)
}

func TestLoadFile_Malformed(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	req.NoError(os.WriteFile(path, []byte("allowed_origins: [unterminated"), 0o600))

	_, err := LoadFile(Default(), path)
	req.Error(err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	req.NoError(os.WriteFile(path, []byte("rate_limit:\n  burst: 3\n"), 0o600))

	base := Default()
	base.JWTSecret = "s"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, logging.Discard(), base, path, func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	// Given the watcher had time to register the file
	time.Sleep(100 * time.Millisecond)

	// When the file is rewritten
	req.NoError(os.WriteFile(path, []byte("rate_limit:\n  burst: 42\n"), 0o600))

	// Then the new values are delivered, possibly after an intermediate
	// event for the truncated file
	deadline := time.After(2 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-changes:
			reloaded = cfg.RateLimitBurst == 42
		case <-deadline:
			req.FailNow("config change was not delivered")
		}
	}

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("watcher did not stop")
	}
}

func TestWatch_ReloadsOnAtomicSave(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	req.NoError(os.WriteFile(path, []byte("rate_limit:\n  burst: 3\n"), 0o600))

	base := Default()
	base.JWTSecret = "s"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 8)
	go func() {
		_ = Watch(ctx, logging.Discard(), base, path, func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	// Given the watcher had time to register the directory
	time.Sleep(100 * time.Millisecond)

	// When an editor saves by renaming a temp file over the config, twice
	for _, burst := range []int{42, 43} {
		tmp := filepath.Join(dir, "relay.yaml.tmp")
		req.NoError(os.WriteFile(tmp, []byte(fmt.Sprintf("rate_limit:\n  burst: %d\n", burst)), 0o600))
		req.NoError(os.Rename(tmp, path))

		// Then every save is reloaded
		deadline := time.After(2 * time.Second)
		for reloaded := false; !reloaded; {
			select {
			case cfg := <-changes:
				reloaded = cfg.RateLimitBurst == burst
			case <-deadline:
				req.FailNow("atomic save was not reloaded", "burst %d", burst)
			}
		}
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	req.NoError(os.WriteFile(path, []byte("rate_limit:\n  burst: 3\n"), 0o600))

	base := Default()
	base.JWTSecret = "s"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, logging.Discard(), base, path, func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		})
	}()
	time.Sleep(100 * time.Millisecond)

	req.NoError(os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("rate_limit:\n  burst: 9\n"), 0o600))

	select {
	case cfg := <-changes:
		req.FailNow("unexpected reload", "burst %d", cfg.RateLimitBurst)
	case <-time.After(300 * time.Millisecond):
	}
}
