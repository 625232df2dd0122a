package resolve

import "errors"

// Sentinel kinds for resolver errors.
var (
	// ErrNoMatch means no canonical name met the confidence threshold.
	ErrNoMatch = errors.New("no catalog entry matched")
)
