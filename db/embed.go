// Package db provides the embedded, linearly numbered schema migrations.
package db

import "embed"

// Migrations holds the DDL scripts applied in lexical order by
// repository.RunMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS
