package notification

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetuply/internal/domain"
)

// Service persists notifications and pushes them to online users
// through the websocket hub. Persistence is the source of truth; a
// failed push just means the user reads it later.
type Service struct {
	db  *gorm.DB
	hub *Hub
	log *zap.Logger
}

func NewService(db *gorm.DB, hub *Hub, log *zap.Logger) *Service {
	return &Service{db: db, hub: hub, log: log}
}

func (s *Service) Notify(ctx context.Context, userID int64, typ domain.NotificationType, title, message string, data any) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			s.log.Error("failed to encode notification data", zap.Error(err))
		} else {
			raw = encoded
		}
	}

	n := domain.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data:    raw,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.log.Error("failed to persist notification",
			zap.Int64("user_id", userID),
			zap.String("type", string(typ)),
			zap.Error(err))
		return
	}

	s.hub.SendToUser(userID, n)
}

// NotifyMany fans one notification out to several users.
func (s *Service) NotifyMany(ctx context.Context, userIDs []int64, typ domain.NotificationType, title, message string, data any) {
	for _, id := range userIDs {
		s.Notify(ctx, id, typ, title, message, data)
	}
}

func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var list []domain.Notification
	if err := q.Order("created_at desc").Limit(100).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true).Error
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}
