package config

import (
	"flag"

	"github.com/dmitrijs2005/gophkerb/internal/flagx"
)

// parseFlags reads -m (msg.info path), -a (listen override), -r (capture
// file) and -l (log level).
func parseFlags(config *Config) {
	flagx.Parse("msgserver", func(fs *flag.FlagSet) {
		fs.StringVar(&config.MsgInfoPath, "m", config.MsgInfoPath, "msg.info path")
		fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "listen address, overrides msg.info")
		fs.StringVar(&config.CapturePath, "r", config.CapturePath, "capture file")
		fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	})
}
