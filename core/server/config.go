package server

// Config holds configuration for the status HTTP server.
type Config struct {
	// Port is the port where the server will listen. Empty disables the server.
	Port string `mapstructure:"port" default:"9090"`
	// ApiKey is the secret key required to read metrics. Empty leaves them open.
	ApiKey string `mapstructure:"api_key" default:""`
}

// Enabled reports whether the status server should be started.
func (c Config) Enabled() bool {
	return c.Port != ""
}
