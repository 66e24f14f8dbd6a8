// Package migrations embeds the schema for every supported database.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
