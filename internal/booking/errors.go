package booking

import "errors"

var (
	ErrNoServiceSelected      = errors.New("select a service first")
	ErrNoSlotSelected         = errors.New("no slot selected")
	ErrAuthRequired           = errors.New("authentication required")
	ErrRequestInFlight        = errors.New("a booking request is already in flight")
	ErrNoBookingPendingDelete = errors.New("no booking pending deletion")
	ErrInvalidTimeLabel       = errors.New("time label outside the hourly grid")
)
