// Package migrations holds the archive schema as embedded golang-migrate files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
