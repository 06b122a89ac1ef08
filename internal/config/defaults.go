package config

// Default values for configuration options — "layer 0" of the four-layer
// override chain (see Load).
const (
	defaultLogLevel = "info"
)

// DefaultConfig returns a Config populated with safe defaults. Used as the
// starting point before any file or flag layer is applied.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: defaultLogLevel,
	}
}
