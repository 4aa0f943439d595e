// Package config loads faviconurl runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds faviconurl runtime configuration.
type Config struct {
	// DBPath is the path to the SQLite icon cache.
	DBPath string `env:"FAVICONURL_DB_PATH,expand" envDefault:"${HOME}/.faviconurl/icons.db"`

	// StoreName selects the store inside the database.
	StoreName string `env:"FAVICONURL_STORE_NAME" envDefault:"icons"`

	// FetchTimeout bounds every HTTP request.
	FetchTimeout time.Duration `env:"FAVICONURL_FETCH_TIMEOUT" envDefault:"10s"`

	// DevicePixelRatio scales requested icon sizes.
	DevicePixelRatio float64 `env:"FAVICONURL_DEVICE_PIXEL_RATIO" envDefault:"1"`

	// MaxIconBytes caps a single icon download.
	MaxIconBytes int64 `env:"FAVICONURL_MAX_ICON_BYTES" envDefault:"10485760"`

	// UserAgent is sent with page, manifest and icon requests.
	UserAgent string `env:"FAVICONURL_USER_AGENT" envDefault:"faviconurl"`

	// OTelEndpoint enables tracing when set.
	OTelEndpoint string `env:"FAVICONURL_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config and checks its values.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.DevicePixelRatio <= 0 {
		return nil, fmt.Errorf("device pixel ratio must be positive, got %v", cfg.DevicePixelRatio)
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %v", cfg.FetchTimeout)
	}
	return &cfg, nil
}
