package domain

import "time"

// Participant is a user's membership in an event. Exactly one row per
// (event, user) and exactly one IsOrganizer=true row per event; the
// organizer row is inserted in the same transaction as the event.
type Participant struct {
	ID      int64 `gorm:"primaryKey" json:"id"`
	EventID int64 `gorm:"not null;uniqueIndex:idx_participants_event_user" json:"event_id"`
	UserID  int64 `gorm:"not null;uniqueIndex:idx_participants_event_user" json:"user_id"`

	IsOrganizer       bool `gorm:"not null" json:"is_organizer"`
	HasConfirmed      bool `gorm:"not null" json:"has_confirmed"`
	KickedByOrganizer bool `gorm:"not null" json:"kicked_by_organizer"`

	// Payed is the number of coins spent to join; refunded on leave.
	Payed int64 `gorm:"not null;default:0" json:"payed"`

	// QR holds the ticket payload shown at the venue entrance.
	QR string `gorm:"type:text" json:"qr,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Participant) TableName() string { return "participants" }
