package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/flagx"
	"github.com/dmitrijs2005/gophkerb/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	AuthAddr    string         `json:"auth_addr"`
	MessageAddr string         `json:"message_addr"`
	InfoPath    string         `json:"info_path"`
	IdleTimeout timex.Duration `json:"idle_timeout"`
	LogLevel    string         `json:"log_level"`
}

// parseJson overlays Config with the fields present in the JSON file named
// by -c or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.AuthAddr != "" {
		cfg.AuthAddr = jc.AuthAddr
	}
	if jc.MessageAddr != "" {
		cfg.MessageAddr = jc.MessageAddr
	}
	if jc.InfoPath != "" {
		cfg.InfoPath = jc.InfoPath
	}
	if jc.IdleTimeout.Duration > 0 {
		cfg.IdleTimeout = time.Duration(jc.IdleTimeout.Duration)
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
