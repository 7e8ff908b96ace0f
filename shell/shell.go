// Package shell defines the host shell collaborators drawbridge consumes:
// hash-based routing, the tile catalog, and navigation-target resolution.
package shell

import "context"

// CancelFunc removes a listener. It is safe to call more than once.
type CancelFunc func()

// LocationListener is notified after every location change.
type LocationListener func(from, to string)

// Router is the shell's routing and history service. Locations are shell
// hashes without the leading '#'.
type Router interface {
	// Current returns the location the shell is showing.
	Current() string
	// Navigate moves the shell to location, adding one history entry.
	Navigate(ctx context.Context, location string) error
	// OnLocationChanged registers a listener for location changes.
	OnLocationChanged(listener LocationListener) CancelFunc
}

// Group is one catalog group. Either Name or Title identifies it.
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
	Tiles []Tile `json:"tiles"`
}

// Tile is one launchable application tile. Configuration is the tile's raw
// declarative configuration document, a JSON string.
type Tile struct {
	ID            string `json:"id"`
	Title         string `json:"title,omitempty"`
	Configuration string `json:"configuration,omitempty"`
}

// Catalog is the shell's tile catalog query service.
type Catalog interface {
	Groups(ctx context.Context) ([]Group, error)
}

// Resolver turns a tile navigation target into the application URL it
// launches, including the URL's query parameters.
type Resolver interface {
	Resolve(ctx context.Context, target string) (string, error)
}

// Readiness is implemented by shells that finish booting asynchronously.
type Readiness interface {
	Ready(ctx context.Context) bool
}
