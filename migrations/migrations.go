// Package migrations embeds the application schema for golang-migrate.
// River's own tables are migrated separately by rivermigrate.
package migrations

import "embed"

// FS holds the numbered up/down SQL files.
//
//go:embed *.sql
var FS embed.FS
