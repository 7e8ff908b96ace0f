package navigation

// Config controls how shell entries made for the companion app are tagged.
//
// Example JSON:
//
//	{
//	  "marker": "DRAWBRIDGE_INTENT"
//	}
type Config struct {
	// Marker is the parameter added, with an empty value, to every location
	// opened on behalf of the companion app.
	Marker string `json:"marker"`
}

func DefaultConfig() Config {
	return Config{
		Marker: "DRAWBRIDGE_INTENT",
	}
}

func (c *Config) Merge(source *Config) {
	if source.Marker != "" {
		c.Marker = source.Marker
	}
}
