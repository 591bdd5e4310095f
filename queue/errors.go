package queue

import "errors"

// ErrClosed is returned by Dequeue once the channel has been Closed and
// every lane has drained.
var ErrClosed = errors.New("queue: channel closed")
