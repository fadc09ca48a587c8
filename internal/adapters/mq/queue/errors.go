package queue

import "errors"

// ErrClosed is returned by Poll once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")
