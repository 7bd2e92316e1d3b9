// Package config provides configuration management for anon-sync.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags of each
// section and are registered through reflection, so every key can be
// overridden by its environment variable (e.g. SYNC_BATCH_SIZE -> sync.batch_size).
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: status server port and API key
//   - Log: logging level and format
//   - Database: MySQL (or SQLite) connection holding source and mirror tables
//   - Feed: change feed backend (redis, kafka, memory)
//   - Sync: batch size, flush interval, buffer bounds, table names
//   - Generator: synthetic customer insertion rate
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.BatchSize)
package config
