package service

import (
	"errors"
	"fmt"

	"github.com/okian/plusolver/internal/domain/targeting"
)

var (
	// ErrSafetyBound is matched by *SafetyBoundError.
	ErrSafetyBound = errors.New("max attempts reached")

	// ErrInvalidTarget re-exports the targeting error for callers of the service.
	ErrInvalidTarget = targeting.ErrInvalidTarget

	// ErrNotStarted is returned by Stream and Solve before Start or after Stop.
	ErrNotStarted = errors.New("service not started")

	// ErrNoCache is returned by Start, RunAttempt and EnsureCatalog when no
	// answer cache was configured.
	ErrNoCache = errors.New("no answer cache configured")
)

// SafetyBoundError reports a full-knowledge run that never reached 100%.
type SafetyBoundError struct {
	Attempts      int
	LastKnowledge float64
}

func (e *SafetyBoundError) Error() string {
	return fmt.Sprintf("%s: %d attempts, user knowledge %.2f%%", ErrSafetyBound, e.Attempts, e.LastKnowledge)
}

// Is matches ErrSafetyBound.
func (e *SafetyBoundError) Is(target error) bool { return target == ErrSafetyBound }
