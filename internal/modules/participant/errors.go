package participant

import "errors"

var (
	ErrEventNotPublished = errors.New("event is not open for sign-up")
	ErrEventStarted      = errors.New("event has already started")
	ErrAlreadyMember     = errors.New("user already signed up")
	ErrNotMember         = errors.New("user is not signed up")
	ErrAgeNotEligible    = errors.New("user age outside the event range")
	ErrNoFreePlaces      = errors.New("no free places left")
	ErrNotOrganizer      = errors.New("only the organizer can do this")
)
