// Package migrations embeds the SQL schema files into the binary so the
// database can be migrated without the files present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/homify-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
