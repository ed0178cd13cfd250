package migrations

import "embed"

// FS contains embedded SQLite migrations for annotation storage.
//
//go:embed *.sql
var FS embed.FS
