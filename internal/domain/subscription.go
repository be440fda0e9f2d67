package domain

import "time"

type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingYearly  BillingPeriod = "yearly"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription is the premium plan that makes a wallet unlimited until
// ExpiresAt.
type Subscription struct {
	ID            string             `gorm:"primaryKey" json:"id"`
	UserID        int64              `gorm:"not null;index" json:"user_id"`
	Status        SubscriptionStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	BillingPeriod BillingPeriod      `gorm:"type:varchar(16);not null" json:"billing_period"`
	StartedAt     time.Time          `gorm:"not null" json:"started_at"`
	ExpiresAt     time.Time          `gorm:"not null" json:"expires_at"`
	CancelReason  string             `gorm:"type:varchar(256)" json:"cancel_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// IsExpired checks if the subscription has passed its expiry date.
func (s *Subscription) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
