// Package database handles database connections and schema inspection.
//
// It wraps GORM to open either a SQLite file (the default, no server needed)
// or a MySQL database, based on the application's configuration. The
// database only backs the optional run history.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns report the live columns of a table, so
// the history store can refuse to write into a table that drifted from its
// models when automatic migration is disabled.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	missing, err := database.MissingColumns(db, "runs", []string{"run_id"})
package database
