package easyplu

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Typed errors below match them via errors.Is.
var (
	ErrAuth      = errors.New("vendor authentication failed")
	ErrUpstream  = errors.New("vendor returned an unexpected response")
	ErrTransport = errors.New("vendor unreachable")
)

// AuthError reports rejected credentials or an unusable token.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: %s", ErrAuth, e.Reason) }

// Is matches ErrAuth.
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// UpstreamError reports a non-2xx status or a body missing required fields.
type UpstreamError struct {
	Call   string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s: %s", ErrUpstream, e.Call, e.Body)
	}
	return fmt.Sprintf("%s: %s: status %d: %s", ErrUpstream, e.Call, e.Status, e.Body)
}

// Is matches ErrUpstream, and ErrAuth for 401 and 403.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return true
	case ErrAuth:
		return e.Unauthorized()
	}
	return false
}

// Unauthorized reports whether the vendor refused the bearer token.
func (e *UpstreamError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// TransportError reports a request that never produced a response.
type TransportError struct {
	Call string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Call, e.Err)
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// bodySnippet keeps error messages bounded.
func bodySnippet(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
