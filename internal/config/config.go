// Package config loads process configuration and the event hub settings.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"hubhelper/internal/hub/client"
	"hubhelper/internal/hub/metrics"
	"hubhelper/internal/hub/reader"
	"hubhelper/internal/hub/tracing"
)

// Config is the process configuration read from the environment.
type Config struct {
	HTTP         HTTPConfig
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	SettingsFile string `env:"SETTINGS_FILE"`
	Metrics      metrics.ServerConfig
	Tracing      tracing.Config
	Reader       reader.Config
	Client       client.Options
}

// HTTPConfig configures the web front-end server.
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses Config from environ, a list of KEY=value pairs as returned by
// os.Environ.
func Load(environ []string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: env.ToMap(environ)}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	return cfg, nil
}
