// Package config loads runtime configuration for the client console.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the authentication server
//	-s string   address:port of the message server
//	-i string   path of the me.info file
//	-t int      idle connection timeout (seconds)
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so it can be either
// a string like "5m" or integer nanoseconds:
//
//	{
//	  "auth_addr": "127.0.0.1:1256",
//	  "message_addr": "127.0.0.1:1235",
//	  "info_path": "me.info",
//	  "idle_timeout": "5m",
//	  "log_level": "warn"
//	}
package config
