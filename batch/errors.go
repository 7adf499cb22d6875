package batch

import "errors"

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("batch: executor closed")
