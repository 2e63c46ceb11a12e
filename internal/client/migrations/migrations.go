// Package migrations embeds the client cache schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
