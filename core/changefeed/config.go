package changefeed

import "time"

// Config selects and configures the change feed backend.
type Config struct {
	// Driver is the backend (redis, kafka, memory).
	Driver string `mapstructure:"driver" default:"redis"`
	// Redis configures the Redis Streams backend.
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka configures the Kafka backend.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// BufferSize is the per-subscriber queue length of the memory backend.
	BufferSize int `mapstructure:"buffer_size" default:"256"`
}

// RedisConfig holds the Redis Streams settings.
type RedisConfig struct {
	// URL is the redis:// connection string.
	URL string `mapstructure:"url" default:"redis://localhost:6379/0"`
	// Stream is the stream key change events are appended to.
	Stream string `mapstructure:"stream" default:"customers.changes"`
	// MaxLen approximately caps the stream length; 0 disables trimming.
	MaxLen int64 `mapstructure:"max_len" default:"100000"`
	// ReadCount is the maximum number of entries fetched per XREAD.
	ReadCount int64 `mapstructure:"read_count" default:"100"`
	// BlockTimeout is how long one XREAD blocks before polling again.
	BlockTimeout time.Duration `mapstructure:"block_timeout" default:"2s"`
}

// KafkaConfig holds the Kafka settings.
type KafkaConfig struct {
	// Brokers is the comma separated seed broker list.
	Brokers []string `mapstructure:"brokers" default:"localhost:9092"`
	// Topic carries change events keyed by document id.
	Topic string `mapstructure:"topic" default:"customers.changes"`
}
