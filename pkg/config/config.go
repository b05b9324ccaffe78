// Package config loads vai-studio settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vango-go/vai-studio/pkg/blobstore"
)

// ErrMissingAPIKey is returned when neither GEMINI_API_KEY nor API_KEY is set.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY (or API_KEY) is required")

type Config struct {
	// APIKey is GEMINI_API_KEY, falling back to API_KEY.
	APIKey         string `env:"GEMINI_API_KEY"`
	FallbackAPIKey string `env:"API_KEY"`

	// Persistence
	Store       blobstore.Kind `env:"VAI_STORE" envDefault:"sqlite"`
	SQLitePath  string         `env:"VAI_SQLITE_PATH" envDefault:"vai-studio.db"`
	DatabaseURL string         `env:"VAI_DATABASE_URL"`
	RedisURL    string         `env:"VAI_REDIS_URL"`
	MediaDir    string         `env:"VAI_MEDIA_DIR" envDefault:"media"`

	// Turns
	VideoPollInterval time.Duration `env:"VAI_VIDEO_POLL_INTERVAL" envDefault:"5s"`
	VideoMaxWait      time.Duration `env:"VAI_VIDEO_MAX_WAIT" envDefault:"10m"`
	TurnTimeout       time.Duration `env:"VAI_TURN_TIMEOUT" envDefault:"0"`

	// Browser bridge
	HTTPAddr            string        `env:"VAI_HTTP_ADDR" envDefault:"127.0.0.1:8089"`
	ReadHeaderTimeout   time.Duration `env:"VAI_HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownGracePeriod time.Duration `env:"VAI_HTTP_SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	MaxBodyBytes        int64         `env:"VAI_HTTP_MAX_BODY_BYTES" envDefault:"26214400"`
	LiveWSPingInterval  time.Duration `env:"VAI_LIVE_WS_PING_INTERVAL" envDefault:"20s"`
	LiveWSWriteTimeout  time.Duration `env:"VAI_LIVE_WS_WRITE_TIMEOUT" envDefault:"5s"`
	LiveMaxFrameBytes   int64         `env:"VAI_LIVE_MAX_FRAME_BYTES" envDefault:"65536"`

	// Logging
	LogLevel  string `env:"VAI_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"VAI_LOG_FORMAT" envDefault:"text"`

	// Local audio devices
	FFmpegPath string `env:"VAI_FFMPEG_PATH" envDefault:"ffmpeg"`
	FFplayPath string `env:"VAI_FFPLAY_PATH" envDefault:"ffplay"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFromMap parses environ instead of the process environment.
func LoadFromMap(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = cfg.FallbackAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	switch c.Store {
	case blobstore.KindSQLite, blobstore.KindMemory:
	case blobstore.KindPostgres:
		if c.DatabaseURL == "" {
			return errors.New("VAI_DATABASE_URL is required when VAI_STORE=postgres")
		}
	case blobstore.KindRedis:
		if c.RedisURL == "" {
			return errors.New("VAI_REDIS_URL is required when VAI_STORE=redis")
		}
	default:
		return fmt.Errorf("VAI_STORE must be sqlite, postgres, redis or memory (got %q)", c.Store)
	}
	if c.VideoPollInterval <= 0 {
		return fmt.Errorf("VAI_VIDEO_POLL_INTERVAL must be > 0 (got %s)", c.VideoPollInterval)
	}
	if c.VideoMaxWait < 0 || c.TurnTimeout < 0 {
		return errors.New("VAI_VIDEO_MAX_WAIT and VAI_TURN_TIMEOUT must be >= 0")
	}
	if c.MaxBodyBytes <= 0 || c.LiveMaxFrameBytes <= 0 {
		return errors.New("VAI_HTTP_MAX_BODY_BYTES and VAI_LIVE_MAX_FRAME_BYTES must be > 0")
	}
	return nil
}

// StoreOptions returns the blob store settings.
func (c *Config) StoreOptions() blobstore.Options {
	return blobstore.Options{
		Kind:        c.Store,
		SQLitePath:  c.SQLitePath,
		DatabaseURL: c.DatabaseURL,
		RedisURL:    c.RedisURL,
	}
}
