// Package config handles configuration for the message server.
package config

// Config holds runtime settings for the message server.
//
// Fields:
//   - MsgInfoPath: msg.info with the listen address, name, id and key.
//   - EndpointAddr: overrides the address from msg.info when set.
//   - CapturePath: JSON file receiving every frame; empty disables capture.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	MsgInfoPath  string
	EndpointAddr string
	CapturePath  string
	LogLevel     string
}

func (c *Config) LoadDefaults() {
	c.MsgInfoPath = "msg.info"
	c.EndpointAddr = ""
	c.CapturePath = ""
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then the optional JSON file, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
