package wdp

import "errors"

// ErrTooManyBids is returned when a round receives more bids than the solver
// is configured to handle.
var ErrTooManyBids = errors.New("too many bids for a single clearing round")
