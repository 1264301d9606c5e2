package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the embedded migrations directory as an fs.FS rooted at
// migrations/, ready for New.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// The directory is embedded at compile time; a failure here is a build defect.
		panic(err)
	}
	return sub
}
