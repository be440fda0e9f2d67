package domain

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotifEventPublished    NotificationType = "event_published"
	NotifEventCancelled    NotificationType = "event_cancelled"
	NotifEventUpdated      NotificationType = "event_updated"
	NotifMemberJoined      NotificationType = "member_joined"
	NotifMemberLeft        NotificationType = "member_left"
	NotifMemberKicked      NotificationType = "member_kicked"
	NotifMemberConfirmed   NotificationType = "member_confirmed"
	NotifPaymentSucceeded  NotificationType = "payment_succeeded"
	NotifPaymentFailed     NotificationType = "payment_failed"
	NotifTransferCompleted NotificationType = "transfer_completed"
	NotifCoinsRefunded     NotificationType = "coins_refunded"
)

// Notification is a persisted per-user message, also pushed over the
// websocket hub when the user is online.
type Notification struct {
	ID        int64            `gorm:"primaryKey" json:"id"`
	UserID    int64            `gorm:"not null;index:idx_notifications_user_unread" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title     string           `gorm:"type:varchar(256);not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Data      json.RawMessage  `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead    bool             `gorm:"not null;index:idx_notifications_user_unread" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
