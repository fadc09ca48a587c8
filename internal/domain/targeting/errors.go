package targeting

import "errors"

// ErrInvalidTarget is returned for a target score outside [0, 100].
var ErrInvalidTarget = errors.New("target score must be between 0 and 100")
