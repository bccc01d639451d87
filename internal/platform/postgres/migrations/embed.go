// Package migrations embeds the goose SQL migrations for the Postgres schema.
package migrations

import "embed"

// TableName is the goose version table.
const TableName = "schema_migrations"

// FS holds every *.sql migration, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
