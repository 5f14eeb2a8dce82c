package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Only the
// flags defined here are picked out of os.Args.
func parseFlags(cfg *Config) {
	var idle int
	flagx.Parse("client", func(fs *flag.FlagSet) {
		fs.StringVar(&cfg.AuthAddr, "a", cfg.AuthAddr, "address and port of the authentication server")
		fs.StringVar(&cfg.MessageAddr, "s", cfg.MessageAddr, "address and port of the message server")
		fs.StringVar(&cfg.InfoPath, "i", cfg.InfoPath, "path of the me.info file")
		fs.IntVar(&idle, "t", int(cfg.IdleTimeout.Seconds()), "idle connection timeout (in seconds)")
		fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	})
	cfg.IdleTimeout = time.Duration(idle) * time.Second
}
