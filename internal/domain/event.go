package domain

import "time"

type PaymentType string

const (
	PaymentTypeFree            PaymentType = "free"
	PaymentTypeOrganizerPays   PaymentType = "organizer_pays"
	PaymentTypeParticipantsPay PaymentType = "participants_pay"
)

// Theme groups events and carries their payment rules.
type Theme struct {
	ID                int64       `gorm:"primaryKey" json:"id"`
	Name              string      `gorm:"type:varchar(128);not null" json:"name"`
	PaymentType       PaymentType `gorm:"type:varchar(24);not null;default:'free'" json:"payment_type"`
	Price             int64       `gorm:"not null;default:0" json:"price"`
	CommissionPercent int64       `gorm:"not null;default:0" json:"commission_percent"`
	CreatedAt         time.Time   `json:"created_at"`
}

func (Theme) TableName() string { return "themes" }

// RequiresOrganizerPayment reports whether publishing an event of this
// theme costs the organizer.
func (t *Theme) RequiresOrganizerPayment() bool {
	return t.PaymentType == PaymentTypeOrganizerPays && t.Price > 0
}

// RequiresParticipantPayment reports whether joining an event of this
// theme costs a participant.
func (t *Theme) RequiresParticipantPayment() bool {
	return t.PaymentType == PaymentTypeParticipantsPay && t.Price > 0
}

// OrganizerShare is the amount forwarded to the organizer after the
// platform keeps its commission.
func (t *Theme) OrganizerShare() int64 {
	return t.Price - t.Price*t.CommissionPercent/100
}

// Event is a meetup. Capacity is described by exactly one of
// TotalPeople or the TotalMale/TotalFemale pair; with neither set the
// event is unbounded. The exclusivity is enforced in the service layer
// (ApplyCapacitySpec), not by the schema, because partial updates could
// not otherwise keep the two shapes mutually exclusive.
type Event struct {
	ID     int64  `gorm:"primaryKey" json:"id"`
	Title  string `gorm:"type:varchar(256);not null" json:"title"`
	MinAge int    `gorm:"not null" json:"min_age"`
	MaxAge int    `gorm:"not null" json:"max_age"`

	StartAt time.Time `gorm:"not null;index" json:"start_at"`
	EndAt   time.Time `gorm:"not null" json:"end_at"`

	TotalPeople *int `json:"total_people,omitempty"`
	TotalMale   *int `json:"total_male,omitempty"`
	TotalFemale *int `json:"total_female,omitempty"`

	ThemeID int64  `gorm:"not null;index" json:"theme_id"`
	Theme   *Theme `gorm:"foreignKey:ThemeID" json:"theme,omitempty"`

	OrganizerID int64 `gorm:"not null;index" json:"organizer_id"`

	// No gorm defaults on the flags: a default tag makes gorm drop the
	// zero value from the INSERT, silently turning a published event
	// (IsDraft=false) back into a draft. The service always sets them.
	IsDraft             bool `gorm:"not null;index" json:"is_draft"`
	IsActive            bool `gorm:"not null;index" json:"is_active"`
	IsCloseEvent        bool `gorm:"not null" json:"is_close_event"`
	OrganizerWillPay    bool `gorm:"not null" json:"organizer_will_pay"`
	PaidByOrganizer     bool `gorm:"not null" json:"paid_by_organizer"`
	DidOrganizerMarking bool `gorm:"not null" json:"did_organizer_marking"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string { return "events" }

// HasGenderCapacity reports whether the per-gender capacity pair is the
// authoritative spec.
func (e *Event) HasGenderCapacity() bool {
	return e.TotalMale != nil && e.TotalFemale != nil
}

// CapacityFor returns the configured limit relevant to the given
// gender, or nil when the event is unbounded.
func (e *Event) CapacityFor(g Gender) *int {
	if e.TotalPeople != nil {
		return e.TotalPeople
	}
	if e.HasGenderCapacity() {
		if g == GenderFemale {
			return e.TotalFemale
		}
		return e.TotalMale
	}
	return nil
}
