package domain

import "time"

// PromoCode credits coins to a wallet once per user.
type PromoCode struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Coins     int64      `gorm:"not null" json:"coins"`
	IsActive  bool       `gorm:"not null" json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (PromoCode) TableName() string { return "promo_codes" }

// IsRedeemable reports whether the code can still be used at the given
// moment.
func (p *PromoCode) IsRedeemable(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

// PromoCodeUsage records a redemption; unique per (code, user).
type PromoCodeUsage struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	PromoCodeID int64     `gorm:"not null;uniqueIndex:idx_promo_usage_code_user" json:"promo_code_id"`
	UserID      int64     `gorm:"not null;uniqueIndex:idx_promo_usage_code_user" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PromoCodeUsage) TableName() string { return "promo_code_usages" }
