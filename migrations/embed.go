// Package migrations embeds the SQL schema migrations applied at startup.
package migrations

import "embed"

// FS holds every goose migration file.
//
//go:embed *.sql
var FS embed.FS
