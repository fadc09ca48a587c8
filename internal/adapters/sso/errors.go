package sso

import "errors"

var (
	// ErrTokenNotCaptured means the browser flow finished without the ranking
	// request ever carrying a bearer token.
	ErrTokenNotCaptured = errors.New("sso: bearer token not captured")

	// ErrVerify means the ranking endpoint refused the captured token.
	ErrVerify = errors.New("sso: token verification failed")

	// ErrMissingCredentials means the user, password or OTP source is empty.
	ErrMissingCredentials = errors.New("sso: missing credentials")
)
