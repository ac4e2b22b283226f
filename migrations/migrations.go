// Package migrations embeds the goose SQL migrations so they are
// applied from the binary itself, independent of the working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
