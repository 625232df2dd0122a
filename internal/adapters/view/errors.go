package view

import "errors"

// Sentinel kinds for view errors.
var (
	ErrRejected = errors.New("external view rejected write")
)
