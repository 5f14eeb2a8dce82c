package config

import "time"

// Config holds runtime settings for the client console.
//
// Fields:
//   - AuthAddr: host:port of the authentication server.
//   - MessageAddr: host:port of the message server.
//   - InfoPath: where the registered name and identity are kept.
//   - IdleTimeout: how long an unused server connection stays open.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	AuthAddr    string
	MessageAddr string
	InfoPath    string
	IdleTimeout time.Duration
	LogLevel    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.AuthAddr = "127.0.0.1:1256"
	c.MessageAddr = "127.0.0.1:1235"
	c.InfoPath = "me.info"
	c.IdleTimeout = 5 * time.Minute
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
