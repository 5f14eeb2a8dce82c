package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/flagx"
	"github.com/dmitrijs2005/gophkerb/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON
// configuration files. Durations use timex.Duration, so both "10m" and
// integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddr   string         `json:"endpoint_addr"`
	DatabaseDSN    string         `json:"database_dsn"`
	ClientsPath    string         `json:"clients_path"`
	MsgInfoPath    string         `json:"msg_info_path"`
	TicketLifetime timex.Duration `json:"ticket_lifetime"`
	CapturePath    string         `json:"capture_path"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays cfg with the fields set in the JSON file named by -c
// or -config. Read and unmarshal errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	overlay(&cfg.EndpointAddr, jc.EndpointAddr)
	overlay(&cfg.DatabaseDSN, jc.DatabaseDSN)
	overlay(&cfg.ClientsPath, jc.ClientsPath)
	overlay(&cfg.MsgInfoPath, jc.MsgInfoPath)
	overlay(&cfg.CapturePath, jc.CapturePath)
	overlay(&cfg.LogLevel, jc.LogLevel)
	if jc.TicketLifetime.Duration > 0 {
		cfg.TicketLifetime = time.Duration(jc.TicketLifetime.Duration)
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
