package repository

import "errors"

// Sentinel kinds for solve store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("solve already recorded for team and challenge")
	ErrInvalidLimit = errors.New("invalid scoreboard limit")
)
