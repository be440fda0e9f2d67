package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	WalletOperationSpend         = "SPEND"
	WalletOperationRefund        = "REFUND"
	WalletOperationReplenishment = "REPLENISHMENT"
)

// Wallet stores a user's coin balance. While UnlimitedUntil is in the
// future, spend and refund are no-ops.
type Wallet struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         int64      `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance        int64      `gorm:"not null;default:0" json:"balance"`
	UnlimitedUntil *time.Time `json:"unlimited_until,omitempty"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
}

func (Wallet) TableName() string { return "wallets" }

func (w *Wallet) BeforeCreate(_ *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// IsUnlimited reports whether the unlimited subscription is active at
// the given moment.
func (w *Wallet) IsUnlimited(now time.Time) bool {
	return w.UnlimitedUntil != nil && !now.After(*w.UnlimitedUntil)
}

// WalletHistory is the append-only audit trail of balance mutations.
// Rows are never updated or deleted.
type WalletHistory struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WalletID      uuid.UUID `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	OperationType string    `gorm:"type:varchar(16);not null;index;check:operation_type IN ('SPEND','REFUND','REPLENISHMENT')" json:"operation_type"`
	Reason        string    `gorm:"type:varchar(256)" json:"reason,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	Wallet *Wallet `gorm:"foreignKey:WalletID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"wallet,omitempty"`
}

func (WalletHistory) TableName() string { return "wallet_history" }

func (h *WalletHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
