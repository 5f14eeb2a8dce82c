package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophkerb/internal/flagx"
)

type JsonConfig struct {
	MsgInfoPath  string `json:"msg_info_path"`
	EndpointAddr string `json:"endpoint_addr"`
	CapturePath  string `json:"capture_path"`
	LogLevel     string `json:"log_level"`
}

// parseJson overlays cfg with the non-empty fields of the JSON file named
// by -c or -config. Read and unmarshal errors panic.
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

	overlay(&cfg.MsgInfoPath, jc.MsgInfoPath)
	overlay(&cfg.EndpointAddr, jc.EndpointAddr)
	overlay(&cfg.CapturePath, jc.CapturePath)
	overlay(&cfg.LogLevel, jc.LogLevel)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
