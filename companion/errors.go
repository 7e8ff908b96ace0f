package companion

import "errors"

// Sentinel errors shared by Channel implementations.
var (
	ErrClosed      = errors.New("companion channel closed")
	ErrUnavailable = errors.New("companion app unavailable")
	ErrRejected    = errors.New("companion app rejected call")
)
