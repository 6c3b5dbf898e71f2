// Package migrations embeds the versioned SQL schema.
package migrations

import "embed"

// FS holds the NNN_name.sql files applied by the migrator.
//
//go:embed *.sql
var FS embed.FS
