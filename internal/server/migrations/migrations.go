// Package migrations embeds the server schema for goose. The SQL is kept
// portable between Postgres and SQLite: timestamps are unix nanoseconds in
// BIGINT columns.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
