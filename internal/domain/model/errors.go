package model

import "errors"

// Sentinel errors for model validation and decoding.
var (
	ErrMissingCredentials = errors.New("identifier and secret are required")
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidNumber      = errors.New("invalid number")
)
