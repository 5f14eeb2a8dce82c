// Package migrations embeds the goose migrations for the SQL client store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
