package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Query parameters a participating tile's resolved URL declares.
const (
	ParamActionType  = "SMD_actionType"
	ParamImageBase64 = "SMD_imageBase64"
	ParamImageURL    = "SMD_imageUrl"
)

// ActionType is the closed set of ways a catalog tile takes part.
type ActionType string

const (
	// ActionAlways tiles are offered for every selected object.
	ActionAlways ActionType = "always"
	// ActionService tiles are offered when their service URL reports a hit
	// for the selected object. The check is made by the companion app.
	ActionService ActionType = "service"
)

func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionAlways, ActionService:
		return ActionType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedActionType, s)
	}
}

// TileConfig is the tile's own declarative configuration.
type TileConfig struct {
	NavigationTargetURL string `json:"navigation_target_url"`
	DisplayTitle        string `json:"display_title_text"`
	DisplaySubtitle     string `json:"display_subtitle_text"`
	ServiceURL          string `json:"service_url"`
}

// ParseTileConfig reads a tile configuration document. The document wraps
// the TileConfig as a JSON string under "tileConfiguration".
func ParseTileConfig(raw string) (TileConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return TileConfig{}, ErrMissingConfiguration
	}

	var outer struct {
		TileConfiguration string `json:"tileConfiguration"`
	}
	if err := json.Unmarshal([]byte(raw), &outer); err != nil {
		return TileConfig{}, fmt.Errorf("parse tile configuration: %w", err)
	}
	if outer.TileConfiguration == "" {
		return TileConfig{}, ErrMissingConfiguration
	}

	var cfg TileConfig
	if err := json.Unmarshal([]byte(outer.TileConfiguration), &cfg); err != nil {
		return TileConfig{}, fmt.Errorf("parse tileConfiguration: %w", err)
	}
	if cfg.NavigationTargetURL == "" {
		return TileConfig{}, ErrMissingTarget
	}

	return cfg, nil
}

// Params are the bridge parameters of a resolved tile URL.
type Params struct {
	ActionType  ActionType
	ImageBase64 string
	ImageURL    string
}

// ParseParams extracts the bridge parameters from the query of a resolved
// application URL. A string without '?' is parsed as a bare query. A URL
// without an action type, or with an empty one, returns ErrNotParticipant.
func ParseParams(resolvedURL string) (Params, error) {
	query := resolvedURL
	if _, after, found := strings.Cut(resolvedURL, "?"); found {
		query = after
	}
	query, _, _ = strings.Cut(query, "#")

	values, err := url.ParseQuery(query)
	if err != nil {
		return Params{}, fmt.Errorf("parse resolved url parameters: %w", err)
	}

	declared := values.Get(ParamActionType)
	if declared == "" {
		return Params{}, ErrNotParticipant
	}

	actionType, err := ParseActionType(declared)
	if err != nil {
		return Params{}, err
	}

	// Query decoding turns an unescaped '+' into a space; base64 has no spaces.
	return Params{
		ActionType:  actionType,
		ImageBase64: strings.ReplaceAll(values.Get(ParamImageBase64), " ", "+"),
		ImageURL:    values.Get(ParamImageURL),
	}, nil
}
