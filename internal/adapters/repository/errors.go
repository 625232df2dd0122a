package repository

import "errors"

// Sentinel kinds for catalog store errors.
var (
	ErrNotFound       = errors.New("entry not found")
	ErrDuplicateEvent = errors.New("event already processed")
	ErrInvalidWeight  = errors.New("vote weight must be positive")
	ErrEmptyName      = errors.New("entry name must not be empty")
	ErrEmptyEventID   = errors.New("event id must not be empty")
)
