package worker

import "errors"

// ErrStopped is returned by Run when Shutdown interrupts the relay.
var ErrStopped = errors.New("relay stopped")
