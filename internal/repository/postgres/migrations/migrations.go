// Package migrations embeds the goose SQL migrations for users and translation history.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
