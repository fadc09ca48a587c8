package cli

import "errors"

// Sentinel kinds for CLI errors.
var (
	ErrRunFailed  = errors.New("run failed")
	ErrNoResult   = errors.New("stream ended without a result")
	ErrEmptyInput = errors.New("no input")
	ErrRelay      = errors.New("relay rejected the request")
)
