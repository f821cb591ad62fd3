// Package migrations embeds the goose SQL migrations. The top level holds the
// catalog schema for local catalogs; history/ holds the job history table,
// which is applied to every catalog.
package migrations

import "embed"

//go:embed *.sql history/*.sql
var FS embed.FS

const (
	CatalogDir = "."
	HistoryDir = "history"
)
