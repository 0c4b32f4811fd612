// Package config loads the service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host        string `env:"HOST,default=127.0.0.1"`
	Port        int    `env:"PORT,default=8080"`
	HealthPort  int    `env:"HEALTH_PORT,default=8081"`
	Transport   string `env:"TRANSPORT,default=tcp"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	EnableMDNS  bool   `env:"ENABLE_MDNS,default=false"`
	ServiceName string `env:"SERVICE_NAME,default=mls-delivery"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Transport != "tcp" && cfg.Transport != "quic" {
		return nil, fmt.Errorf("config: TRANSPORT must be tcp or quic, got %q", cfg.Transport)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListenAddr is the wire protocol listen address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HealthAddr is the supervisory HTTP listen address.
func (c *Config) HealthAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HealthPort))
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown LOG_LEVEL %q", c.LogLevel)
}
