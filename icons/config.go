package icons

import (
	"time"

	"github.com/tailored-agentic-units/drawbridge/config"
)

// Config controls image loading.
//
// Example JSON:
//
//	{
//	  "max_concurrent_loads": 4,
//	  "load_timeout": "10s",
//	  "base_url": "https://launchpad.example.com/",
//	  "max_image_bytes": 5242880,
//	  "max_image_pixels": 16777216
//	}
type Config struct {
	// MaxConcurrentLoads bounds image loads in flight across all batches.
	MaxConcurrentLoads int `json:"max_concurrent_loads"`

	// LoadTimeout bounds a single HTTP load. Batches themselves never time out.
	LoadTimeout config.Duration `json:"load_timeout"`

	// BaseURL resolves relative image URLs.
	BaseURL string `json:"base_url"`

	// MaxImageBytes caps the size of one loaded image.
	MaxImageBytes int64 `json:"max_image_bytes"`

	// MaxImagePixels caps width times height of one decoded image.
	MaxImagePixels int64 `json:"max_image_pixels"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentLoads: 4,
		LoadTimeout:        config.Duration(10 * time.Second),
		MaxImageBytes:      5 << 20,
		MaxImagePixels:     16 << 20,
	}
}

func (c *Config) Merge(source *Config) {
	if source.MaxConcurrentLoads > 0 {
		c.MaxConcurrentLoads = source.MaxConcurrentLoads
	}

	if source.LoadTimeout > 0 {
		c.LoadTimeout = source.LoadTimeout
	}

	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}

	if source.MaxImageBytes > 0 {
		c.MaxImageBytes = source.MaxImageBytes
	}

	if source.MaxImagePixels > 0 {
		c.MaxImagePixels = source.MaxImagePixels
	}
}
