package migrations

import "embed"

// FS contains embedded SQLite migrations for livegate storage.
//
//go:embed *.sql
var FS embed.FS
