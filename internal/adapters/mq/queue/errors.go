package queue

import "errors"

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("queue closed")
