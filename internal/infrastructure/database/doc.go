// Package database provides the SQLite store behind climate snapshots and
// state history.
//
// This package manages:
//   - Connection setup with WAL mode and busy timeout
//   - Additive schema migrations read from an fs.FS
//   - Health checks
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
