package mqtt

import "errors"

// ErrMalformedMessage is returned when a payload cannot be decoded into a bid.
var ErrMalformedMessage = errors.New("malformed bid message")
