package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort               = 8899
	DefaultWriteTimeout       = 5 * time.Second
	DefaultReadLimit          = 1 << 20
	DefaultShutdownTimeout    = 10 * time.Second
	DefaultHandlerTimeout     = 2 * time.Minute
	DefaultRestURL            = "https://api-pub.bitfinex.com/v2"
	DefaultWSURL              = "wss://api.bitfinex.com/ws/2"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRefreshInterval    = 15 * time.Minute
	DefaultInitialLoadTimeout = 2 * time.Minute
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = DefaultReadLimit
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.HandlerTimeout == 0 {
		c.Server.HandlerTimeout = DefaultHandlerTimeout
	}

	// Upstream defaults
	if c.Upstream.RestURL == "" {
		c.Upstream.RestURL = DefaultRestURL
	}
	if c.Upstream.WSURL == "" {
		c.Upstream.WSURL = DefaultWSURL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultAPITimeout
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = DefaultMaxRetries
	}

	// Markets defaults
	if c.Markets.RefreshInterval == 0 {
		c.Markets.RefreshInterval = DefaultRefreshInterval
	}
	if c.Markets.InitialLoadTimeout == 0 {
		c.Markets.InitialLoadTimeout = DefaultInitialLoadTimeout
	}

	// Database defaults, only when a database is configured
	if c.Database.Enabled() {
		applyDBDefaults(&c.Database.Postgres)
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
