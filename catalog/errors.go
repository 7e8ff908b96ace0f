package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedActionType = errors.New("unsupported action type")
	ErrNotParticipant        = errors.New("tile declares no action type")
	ErrMissingConfiguration  = errors.New("tile has no configuration")
	ErrMissingTarget         = errors.New("tile configuration has no navigation target")
	ErrUnresolved            = errors.New("navigation target did not resolve")
)

// TileError records why one tile was left out of a scan.
type TileError struct {
	Group  string
	Index  int
	TileID string
	Target string
	Err    error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d (%s) of group %s, target %q: %v", e.Index, e.TileID, e.Group, e.Target, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}
