package event

import (
	"gorm.io/gorm"

	"meetuply/internal/domain"
)

// Occupancy counting. An event is bounded either by a single total or
// by a per-gender pair; kicked participants never hold a seat. All
// queries take the caller's handle so sign-up can count inside its own
// locked transaction.

func countParticipants(tx *gorm.DB, eventID int64) (int64, error) {
	var n int64
	err := tx.Model(&domain.Participant{}).
		Where("event_id = ? AND kicked_by_organizer = ?", eventID, false).
		Count(&n).Error
	return n, err
}

func countParticipantsByGender(tx *gorm.DB, eventID int64, g domain.Gender) (int64, error) {
	var n int64
	err := tx.Model(&domain.Participant{}).
		Joins("JOIN users ON users.id = participants.user_id").
		Where("participants.event_id = ? AND participants.kicked_by_organizer = ? AND users.gender = ?",
			eventID, false, g).
		Count(&n).Error
	return n, err
}

// FreePlaces returns the remaining seats under either capacity shape:
// the single total, or the sum of the gender pair, minus everyone
// signed up. Nil means the event is unbounded.
func FreePlaces(tx *gorm.DB, e *domain.Event) (*int, error) {
	var limit int
	switch {
	case e.TotalPeople != nil:
		limit = *e.TotalPeople
	case e.HasGenderCapacity():
		limit = *e.TotalMale + *e.TotalFemale
	default:
		return nil, nil
	}
	taken, err := countParticipants(tx, e.ID)
	if err != nil {
		return nil, err
	}
	free := limit - int(taken)
	if free < 0 {
		free = 0
	}
	return &free, nil
}

// FreePlacesForGender returns the remaining seats for the given gender
// under the per-gender shape, or nil when that shape is not in use.
func FreePlacesForGender(tx *gorm.DB, e *domain.Event, g domain.Gender) (*int, error) {
	if !e.HasGenderCapacity() {
		return nil, nil
	}
	limit := *e.CapacityFor(g)
	taken, err := countParticipantsByGender(tx, e.ID, g)
	if err != nil {
		return nil, err
	}
	free := limit - int(taken)
	if free < 0 {
		free = 0
	}
	return &free, nil
}

// HasFreePlaces reports whether a user of the given gender can still
// take a seat. Unbounded events always have room.
func HasFreePlaces(tx *gorm.DB, e *domain.Event, g domain.Gender) (bool, error) {
	if e.TotalPeople != nil {
		free, err := FreePlaces(tx, e)
		if err != nil {
			return false, err
		}
		return *free > 0, nil
	}
	if e.HasGenderCapacity() {
		free, err := FreePlacesForGender(tx, e, g)
		if err != nil {
			return false, err
		}
		return *free > 0, nil
	}
	return true, nil
}
