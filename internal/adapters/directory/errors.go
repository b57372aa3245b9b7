package directory

import "errors"

// Sentinel errors for challenge lookups.
var (
	ErrUnknownChallenge = errors.New("unknown challenge")
	ErrInvalidChallenge = errors.New("challenge id must not be empty")
)
