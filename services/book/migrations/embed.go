package migrations

import "embed"

// FS holds the book schema migrations.
//
//go:embed *.sql
var FS embed.FS
