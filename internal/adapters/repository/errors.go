package repository

import "errors"

// Sentinel kinds for answer cache errors.
var (
	ErrNotFound          = errors.New("catalog item not found")
	ErrInvalidLimit      = errors.New("invalid catalog limit")
	ErrUnsupportedDriver = errors.New("unsupported cache driver")
)
