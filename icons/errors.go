package icons

import "errors"

var (
	ErrUnsupportedScheme = errors.New("unsupported image url scheme")
	ErrInvalidDataURL    = errors.New("invalid data url")
	ErrImageTooLarge     = errors.New("image exceeds size limit")
	ErrUnexpectedStatus  = errors.New("unexpected image response status")
	ErrEmptyImage        = errors.New("image data is empty")
)
