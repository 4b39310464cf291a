package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for a data server instance.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Markets  MarketsConfig  `yaml:"markets"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the client-facing WebSocket listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ReadLimit       int64         `yaml:"read_limit" validate:"gt=0"` // Max inbound frame size in bytes
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout" validate:"gt=0"` // Upper bound on one command handler
}

// UpstreamConfig holds Bitfinex API settings.
type UpstreamConfig struct {
	RestURL    string        `yaml:"rest_url" validate:"required,url"`
	WSURL      string        `yaml:"ws_url" validate:"required,url"`
	APIKey     string        `yaml:"api_key"`
	APISecret  string        `yaml:"api_secret"`
	Agent      string        `yaml:"agent" validate:"omitempty,url"` // HTTP(S) proxy for REST and WebSocket
	Transform  bool          `yaml:"transform"`                      // Send candles/trades as objects instead of arrays
	Proxy      bool          `yaml:"proxy"`                          // Open a dedicated upstream connection per session
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"min=0"`
}

// AgentURL parses the agent option. It returns nil when no agent is configured.
func (u UpstreamConfig) AgentURL() (*url.URL, error) {
	if u.Agent == "" {
		return nil, nil
	}
	parsed, err := url.Parse(u.Agent)
	if err != nil {
		return nil, fmt.Errorf("parse upstream.agent: %w", err)
	}
	return parsed, nil
}

// HasCredentials reports whether both API key and secret are set.
func (u UpstreamConfig) HasCredentials() bool {
	return u.APIKey != "" && u.APISecret != ""
}

// MarketsConfig holds market list settings.
type MarketsConfig struct {
	RefreshInterval    time.Duration `yaml:"refresh_interval" validate:"gt=0"`
	InitialLoadTimeout time.Duration `yaml:"initial_load_timeout" validate:"gt=0"`
}

// DatabaseConfig holds the optional backtest database.
// Backtest storage is disabled when postgres.host is empty.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Postgres.Host != ""
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the side HTTP server (health + Prometheus) settings.
type MetricsConfig struct {
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Path string `yaml:"path" validate:"startswith=/"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}
