package syncer

import (
	"time"

	"anon-sync/feature/customers/models"
)

// Config holds the sync engine settings.
type Config struct {
	// BatchSize is the buffer length that triggers an immediate flush.
	BatchSize int `mapstructure:"batch_size" default:"1000"`
	// FlushInterval is the period of the timer-triggered flush.
	FlushInterval time.Duration `mapstructure:"flush_interval" default:"1s"`
	// MaxBuffered caps records held by the scheduler, including records of
	// flushes still in progress. Add blocks while the cap is reached.
	MaxBuffered int `mapstructure:"max_buffered" default:"10000"`
	// MaxInFlight is the number of flushes allowed to run at the same time.
	MaxInFlight int `mapstructure:"max_in_flight" default:"1"`
	// FlushWorkers bounds concurrent upserts within one flush.
	FlushWorkers int `mapstructure:"flush_workers" default:"100"`
	// ReindexChunkSize is the number of source records read per reindex or
	// catch-up chunk.
	ReindexChunkSize int `mapstructure:"reindex_chunk_size" default:"100"`
	// SourceTable is the table holding the original customers.
	SourceTable string `mapstructure:"source_table" default:"customers"`
	// MirrorTable is the table receiving anonymized customers.
	MirrorTable string `mapstructure:"mirror_table" default:"customers_anonymised"`
}

// withDefaults fills unset or invalid values.
func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.MaxBuffered < c.BatchSize {
		c.MaxBuffered = 10 * c.BatchSize
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 1
	}
	if c.FlushWorkers <= 0 {
		c.FlushWorkers = 100
	}
	if c.ReindexChunkSize <= 0 || c.ReindexChunkSize > 100 {
		c.ReindexChunkSize = 100
	}
	if c.SourceTable == "" {
		c.SourceTable = models.SourceTable
	}
	if c.MirrorTable == "" {
		c.MirrorTable = models.MirrorTable
	}
	return c
}
