package inflight

import (
	"errors"
	"fmt"
)

// Admission errors. ErrFull wraps ErrBusy so callers can treat both as a conflict.
var (
	ErrBusy = errors.New("a run is already in progress")
	ErrFull = fmt.Errorf("%w: too many active runs", ErrBusy)
)
