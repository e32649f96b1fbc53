// Package migrations holds the offer service's PostgreSQL schema.
package migrations

import "embed"

// FS contains the *.up.sql and *.down.sql files, applied in name order.
//
//go:embed *.sql
var FS embed.FS
