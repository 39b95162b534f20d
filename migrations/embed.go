// Package migrations embeds the SQL schema so binaries can migrate without
// a checkout of the repository.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
