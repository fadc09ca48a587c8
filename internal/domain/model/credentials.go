package model

import (
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// Credentials identify the operator to the vendor. They are supplied per
// run and never persisted or logged in full.
type Credentials struct {
	Identifier string
	Secret     string
}

// Validate checks that both halves are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" || c.Secret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// String implements fmt.Stringer without the secret.
func (c Credentials) String() string {
	return "identifier=" + c.Identifier + " secret=" + redacted
}

// LogValue implements slog.LogValuer without the secret.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identifier", c.Identifier),
		slog.String("secret", redacted),
	)
}
