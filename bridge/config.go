package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/drawbridge/catalog"
	"github.com/tailored-agentic-units/drawbridge/companion/connectrpc"
	"github.com/tailored-agentic-units/drawbridge/config"
	"github.com/tailored-agentic-units/drawbridge/icons"
	"github.com/tailored-agentic-units/drawbridge/loop"
	"github.com/tailored-agentic-units/drawbridge/navigation"
)

const (
	defaultObserver          = "slog"
	defaultToastTitle        = "Drawing says: "
	defaultReadyPollInterval = 200 * time.Millisecond
)

// Config holds initialization parameters for the bridge and every component
// it owns. Each section is handed to that component's constructor.
type Config struct {
	Observer          string          `json:"observer,omitempty"`
	CompanionURL      string          `json:"companion_url,omitempty"`
	ToastTitle        string          `json:"toast_title,omitempty"`
	ReadyPollInterval config.Duration `json:"ready_poll_interval,omitempty"`

	Loop       loop.Config       `json:"loop"`
	Catalog    catalog.Config    `json:"catalog"`
	Icons      icons.Config      `json:"icons"`
	Navigation navigation.Config `json:"navigation"`
	Companion  connectrpc.Config `json:"companion"`
}

// DefaultConfig returns a Config with defaults for every component.
func DefaultConfig() Config {
	return Config{
		Observer:          defaultObserver,
		ToastTitle:        defaultToastTitle,
		ReadyPollInterval: config.Duration(defaultReadyPollInterval),
		Loop:              loop.DefaultConfig(),
		Catalog:           catalog.DefaultConfig(),
		Icons:             icons.DefaultConfig(),
		Navigation:        navigation.DefaultConfig(),
		Companion:         connectrpc.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// component's Merge method.
func (c *Config) Merge(source *Config) {
	c.Loop.Merge(&source.Loop)
	c.Catalog.Merge(&source.Catalog)
	c.Icons.Merge(&source.Icons)
	c.Navigation.Merge(&source.Navigation)
	c.Companion.Merge(&source.Companion)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.CompanionURL != "" {
		c.CompanionURL = source.CompanionURL
	}
	if source.ToastTitle != "" {
		c.ToastTitle = source.ToastTitle
	}
	if source.ReadyPollInterval > 0 {
		c.ReadyPollInterval = source.ReadyPollInterval
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
