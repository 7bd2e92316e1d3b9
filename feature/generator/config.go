package generator

import "time"

// Config holds the synthetic customer generator settings.
type Config struct {
	// Min is the smallest number of customers inserted per tick.
	Min int `mapstructure:"min" default:"1"`
	// Max is the largest number of customers inserted per tick.
	Max int `mapstructure:"max" default:"10"`
	// Interval is the time between two inserts.
	Interval time.Duration `mapstructure:"interval" default:"200ms"`
}

func (c Config) withDefaults() Config {
	if c.Min <= 0 {
		c.Min = 1
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	if c.Interval <= 0 {
		c.Interval = 200 * time.Millisecond
	}
	return c
}
