// Package migrations embeds the schema migrations for each database driver.
// SQLite migrations live under sqlite/ and MongoDB index migrations under
// mongodb/.
package migrations

import "embed"

// FS holds the embedded migration files.
//
//go:embed sqlite/*.sql mongodb/*.json
var FS embed.FS
