// Package a11yscan exposes embedded assets shared across commands.
package a11yscan

import "embed"

// Migrations contains the goose SQL migrations applied by the migrate
// subcommand.
//
//go:embed migrations/*.sql
var Migrations embed.FS
