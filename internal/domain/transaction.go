package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionMoneyHold TransactionStatus = "MONEY_HOLD"
	TransactionSuccess   TransactionStatus = "SUCCESS"
	TransactionFailed    TransactionStatus = "FAILED"
	TransactionCanceled  TransactionStatus = "CANCELED"
)

type ProductType string

const (
	ProductOrganization ProductType = "ORGANIZATION"
	ProductParticipance ProductType = "PARTICIPANCE"
)

type TransactionType string

const (
	TransactionPayment  TransactionType = "PAYMENT"
	TransactionTransfer TransactionType = "TRANSFER"
)

// TinkoffTransaction is one leg of a split payment. The inbound leg
// (PAYMENT) moves money from the payer to the platform, the outbound
// leg (TRANSFER) forwards the organizer's share. UUID is the
// idempotency key sent to the gateway as OrderId; webhook callbacks are
// matched on (uuid, payment_id, status=PENDING) so replays and stale
// callbacks never advance state twice.
type TinkoffTransaction struct {
	ID   int64     `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"uuid"`

	UserID  int64 `gorm:"not null;index" json:"user_id"`
	EventID int64 `gorm:"not null;index" json:"event_id"`

	ProductType     ProductType       `gorm:"type:varchar(16);not null" json:"product_type"`
	TransactionType TransactionType   `gorm:"type:varchar(16);not null;default:'PAYMENT'" json:"transaction_type"`
	Status          TransactionStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`

	Price int64 `gorm:"not null" json:"price"`

	DealID     string `gorm:"type:varchar(64)" json:"deal_id,omitempty"`
	PaymentID  string `gorm:"type:varchar(64);index" json:"payment_id,omitempty"`
	PaymentURL string `gorm:"type:text" json:"payment_url,omitempty"`

	// PaymentUUID ties a TRANSFER to the PAYMENT leg it settles. Unique,
	// so the transfer is created at most once per inbound payment.
	PaymentUUID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"payment_uuid,omitempty"`

	FailureReason string `gorm:"type:text" json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TinkoffTransaction) TableName() string { return "tinkoff_transactions" }

func (t *TinkoffTransaction) BeforeCreate(_ *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

// IsFinal reports whether the transaction can no longer change state.
func (t *TinkoffTransaction) IsFinal() bool {
	return t.Status == TransactionSuccess || t.Status == TransactionFailed || t.Status == TransactionCanceled
}
