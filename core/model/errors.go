package model

import "errors"

var (
	// ErrEmptyCurve is returned when a capacity curve is built from zero intervals.
	ErrEmptyCurve = errors.New("capacity curve has no intervals")
	// ErrIndexOutOfRange is returned for an interval outside [0,n) or a range
	// query whose start is after its end.
	ErrIndexOutOfRange = errors.New("interval index out of range")
	// ErrInvalidBid is returned for a bundle with a non-positive offered
	// capacity, a duplicate interval or no line items at all.
	ErrInvalidBid = errors.New("invalid bid")
)
