package event

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrNotOrganizer  = errors.New("user is not the event organizer")

	ErrInvalidAgeRange  = errors.New("min age must not exceed max age")
	ErrInvalidTimeRange = errors.New("event must end after it starts")

	// ErrCapacityConflict means a request carried both the total and the
	// per-gender capacity shapes at once.
	ErrCapacityConflict = errors.New("total and per-gender capacity are mutually exclusive")
	// ErrCapacityBelowOccupancy means the requested limit is smaller than
	// the number of seats already taken.
	ErrCapacityBelowOccupancy = errors.New("capacity below current occupancy")

	ErrEventNotPublished = errors.New("event is not published")
	ErrAlreadyPublished  = errors.New("event is already published")
	ErrEventInactive     = errors.New("event is cancelled")
	ErrEventStarted      = errors.New("event has already started")

	// ErrEditWindowClosed guards the last hours before the start: the
	// organizer can no longer edit or cancel.
	ErrEditWindowClosed = errors.New("edit window is closed")
)
