package event

import "time"

// CapacitySpec carries one of the two capacity shapes. Sending both
// shapes at once is rejected; sending neither leaves the event
// unbounded (on create) or the current shape untouched (on update).
type CapacitySpec struct {
	TotalPeople *int `json:"total_people" binding:"omitempty,gt=0"`
	TotalMale   *int `json:"total_male" binding:"omitempty,gte=0"`
	TotalFemale *int `json:"total_female" binding:"omitempty,gte=0"`
}

func (c CapacitySpec) hasTotal() bool  { return c.TotalPeople != nil }
func (c CapacitySpec) hasGender() bool { return c.TotalMale != nil || c.TotalFemale != nil }
func (c CapacitySpec) empty() bool     { return !c.hasTotal() && !c.hasGender() }

type CreateEventRequest struct {
	Title   string    `json:"title" binding:"required,max=256"`
	MinAge  int       `json:"min_age" binding:"required,gte=0"`
	MaxAge  int       `json:"max_age" binding:"required,gte=0"`
	StartAt time.Time `json:"start_at" binding:"required"`
	EndAt   time.Time `json:"end_at" binding:"required"`
	ThemeID int64     `json:"theme_id" binding:"required"`

	IsDraft          bool `json:"is_draft"`
	IsCloseEvent     bool `json:"is_close_event"`
	OrganizerWillPay bool `json:"organizer_will_pay"`

	// PayWithGateway routes the organization fee through the acquiring
	// gateway instead of the coin wallet.
	PayWithGateway bool `json:"pay_with_gateway"`

	CapacitySpec
}

type UpdateEventRequest struct {
	Title        *string    `json:"title" binding:"omitempty,max=256"`
	MinAge       *int       `json:"min_age" binding:"omitempty,gte=0"`
	MaxAge       *int       `json:"max_age" binding:"omitempty,gte=0"`
	StartAt      *time.Time `json:"start_at"`
	EndAt        *time.Time `json:"end_at"`
	IsCloseEvent *bool      `json:"is_close_event"`

	CapacitySpec
}

type PublishRequest struct {
	PayWithGateway bool `json:"pay_with_gateway"`
}
