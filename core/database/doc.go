// Package database handles database connections and schema inspection.
//
// It wraps GORM to configure MySQL (production) or SQLite (local runs and
// tests) connections from the application's configuration. Both the source
// collection and the anonymized mirror live behind the connection returned
// by Connect.
//
// # Schema Inspection
//
// TableColumns and MissingColumns let callers verify at startup that a table
// written by an external producer carries the columns the sync engine reads.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//	defer database.Close(db)
package database
