package migrations

import "embed"

// Files holds the SQL migrations applied at startup.
//
//go:embed *.sql
var Files embed.FS
