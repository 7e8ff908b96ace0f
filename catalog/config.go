package catalog

// Config selects the catalog group whose tiles take part in the bridge.
//
// Example JSON:
//
//	{
//	  "group": "Smart Drawing Integrated"
//	}
type Config struct {
	// Group is matched against both the name and the title of each catalog group.
	Group string `json:"group"`
}

func DefaultConfig() Config {
	return Config{
		Group: "Smart Drawing Integrated",
	}
}

func (c *Config) Merge(source *Config) {
	if source.Group != "" {
		c.Group = source.Group
	}
}
