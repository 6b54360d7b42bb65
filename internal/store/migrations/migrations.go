// Package migrations embeds the ClickHouse schema for scenario outcomes.
package migrations

import "embed"

// FS holds the numbered up/down SQL files.
//
//go:embed *.sql
var FS embed.FS
