// Package database provides the SQLite store behind the command audit log.
//
// Open creates the database file (and its directory) if needed, enables
// WAL mode when configured and pins the pool to one connection. Migrate
// applies the embedded, forward-only migrations registered by the
// top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All queries in Homify use parameterised statements.
package database
