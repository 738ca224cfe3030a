// Package migrations embeds the SQL schema migrations so the service binary
// is self-contained.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
