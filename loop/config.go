package loop

// Config holds event loop parameters.
type Config struct {
	Name      string `json:"name,omitempty"`
	QueueSize int    `json:"queue_size,omitempty"`
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		Name:      "drawbridge",
		QueueSize: 256,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.QueueSize > 0 {
		c.QueueSize = source.QueueSize
	}
}
