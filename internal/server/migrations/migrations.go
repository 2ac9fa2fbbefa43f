// Package migrations embeds the goose SQL migrations for the relational
// user stores, one directory per dialect.
package migrations

import "embed"

// Directories inside Migrations, passed to goose as the migration dir.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
