package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   bind address (e.g., ":1256")
//	-d string   database DSN; empty keeps clients in a file
//	-f string   clients file
//	-m string   msg.info path
//	-t int      ticket lifetime, minutes
//	-r string   capture file; empty disables capture
//	-l string   log level
func parseFlags(config *Config) {
	var lifetime int
	flagx.Parse("authserver", func(fs *flag.FlagSet) {
		fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
		fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
		fs.StringVar(&config.ClientsPath, "f", config.ClientsPath, "clients file")
		fs.StringVar(&config.MsgInfoPath, "m", config.MsgInfoPath, "msg.info path")
		fs.IntVar(&lifetime, "t", int(config.TicketLifetime.Minutes()), "ticket lifetime (in minutes)")
		fs.StringVar(&config.CapturePath, "r", config.CapturePath, "capture file")
		fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	})
	config.TicketLifetime = time.Duration(lifetime) * time.Minute
}
