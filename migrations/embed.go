// Package migrations embeds the Postgres schema for the bookings store.
package migrations

import "embed"

// FS holds the numbered up/down SQL files consumed by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
