package bridge

import "errors"

var (
	// ErrEmptyID is returned by pass-through calls given an empty object or
	// drawing id. No companion call is made.
	ErrEmptyID = errors.New("empty id")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("bridge already started")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("bridge closed")
)
