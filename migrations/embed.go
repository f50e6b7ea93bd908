// Package migrations embeds the goose SQL migrations for the voyager database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
