// Package config handles configuration for the authentication server,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/envelope"
	"github.com/dmitrijs2005/gophkerb/internal/serverinfo"
)

// PortFile is consulted for the default listen port.
const PortFile = "port.info"

// Config holds runtime settings for the authentication server.
//
// Fields:
//   - EndpointAddr: TCP bind address.
//   - DatabaseDSN: Postgres or SQLite DSN; empty keeps clients in ClientsPath.
//   - ClientsPath: line-oriented client store used without a DSN.
//   - MsgInfoPath: msg.info describing the message server.
//   - TicketLifetime: validity of issued tickets.
//   - CapturePath: JSON file receiving every frame; empty disables capture.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	EndpointAddr   string
	DatabaseDSN    string
	ClientsPath    string
	MsgInfoPath    string
	TicketLifetime time.Duration
	CapturePath    string
	LogLevel       string
}

// LoadDefaults populates Config with defaults. The port comes from
// port.info in the working directory when it holds a valid one.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = fmt.Sprintf(":%d", serverinfo.ReadPort(PortFile, serverinfo.DefaultAuthPort))
	c.DatabaseDSN = ""
	c.ClientsPath = "clients"
	c.MsgInfoPath = "msg.info"
	c.TicketLifetime = envelope.TicketLifetime
	c.CapturePath = ""
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
