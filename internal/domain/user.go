package domain

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// User is a platform account. Gender and BirthDate feed the event
// capacity and age-eligibility checks.
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Name         string    `gorm:"type:varchar(128)" json:"name"`
	Gender       Gender    `gorm:"type:varchar(8);not null" json:"gender"`
	BirthDate    time.Time `gorm:"not null" json:"birth_date"`

	// Gateway identifiers. CustomerKey is sent on every Init call,
	// CardID is the payout card bound via the e2c flow.
	CustomerKey string `gorm:"type:varchar(64)" json:"-"`
	CardID      string `gorm:"type:varchar(64)" json:"-"`
	CardPan     string `gorm:"type:varchar(24)" json:"card_pan,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// AgeAt returns the user's full years at the given moment.
func (u *User) AgeAt(at time.Time) int {
	years := at.Year() - u.BirthDate.Year()
	anniversary := u.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// HasPayoutCard reports whether a transfer leg can target this user.
func (u *User) HasPayoutCard() bool {
	return u.CardID != ""
}
