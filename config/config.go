package config

import (
	"fmt"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Reconnect ReconnectConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string   `envconfig:"PORT" default:"3000"`
	Host         string   `envconfig:"HOST" default:""`
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	// JWTSecret kosong = endpoint tanpa auth
	JWTSecret string `envconfig:"JWT_SECRET" default:""`
}

// StoreConfig menentukan lokasi kredensial sesi whatsmeow.
type StoreConfig struct {
	Dialect    string `envconfig:"WA_STORE_DIALECT" default:"sqlite"`
	DSN        string `envconfig:"WA_STORE_DSN" default:"file:session.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"`
	DeviceName string `envconfig:"WA_DEVICE_NAME" default:"WhatsApp Gateway"`
}

type ReconnectConfig struct {
	Delay time.Duration `envconfig:"RECONNECT_DELAY" default:"5s"`
	// 0 = retry terus tanpa batas
	MaxAttempts int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"0"`
}

type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	ClientLevel string `envconfig:"WA_LOG_LEVEL" default:"warn"`
}

// Load membaca .env (kalau ada) lalu environment variable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Dialect {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported WA_STORE_DIALECT %q (want sqlite or postgres)", c.Store.Dialect)
	}
	if c.Reconnect.Delay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", c.Reconnect.Delay)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must not be negative, got %d", c.Reconnect.MaxAttempts)
	}
	return nil
}

// Addr returns the listen address for echo.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}
