package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetuply/internal/domain"
	"meetuply/internal/modules/wallet"
)

// Service manages the premium plan. An active subscription makes the
// user's wallet unlimited until it expires; coin operations become
// no-ops for that window.
type Service struct {
	db      *gorm.DB
	wallets *wallet.Service
	log     *zap.Logger
}

func NewService(db *gorm.DB, wallets *wallet.Service, log *zap.Logger) *Service {
	return &Service{db: db, wallets: wallets, log: log}
}

// Subscribe starts a plan and stretches the wallet's unlimited window
// to its expiry.
func (s *Service) Subscribe(ctx context.Context, userID int64, period domain.BillingPeriod) (*domain.Subscription, error) {
	var expiresAt time.Time
	now := time.Now()
	switch period {
	case domain.BillingMonthly:
		expiresAt = now.AddDate(0, 1, 0)
	case domain.BillingYearly:
		expiresAt = now.AddDate(1, 0, 0)
	default:
		return nil, ErrUnknownBillingPeriod
	}

	existing, err := s.Active(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadySubscribed
	}

	sub := &domain.Subscription{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        domain.SubscriptionActive,
		BillingPeriod: period,
		StartedAt:     now,
		ExpiresAt:     expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, err
	}
	if err := s.wallets.SetUnlimitedUntil(ctx, userID, expiresAt); err != nil {
		return nil, err
	}

	s.log.Info("subscription started",
		zap.Int64("user_id", userID),
		zap.String("period", string(period)),
		zap.Time("expires_at", expiresAt))
	return sub, nil
}

// Cancel stops the plan immediately and closes the unlimited window.
func (s *Service) Cancel(ctx context.Context, userID int64, reason string) error {
	sub, err := s.Active(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"status":        domain.SubscriptionCancelled,
			"cancel_reason": reason,
			"expires_at":    now,
		}).Error; err != nil {
		return err
	}
	return s.wallets.SetUnlimitedUntil(ctx, userID, now)
}

// Active returns the user's current subscription, expiring it lazily
// when its window has passed.
func (s *Service) Active(ctx context.Context, userID int64) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.SubscriptionActive).
		Order("expires_at desc").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	if sub.IsExpired(time.Now()) {
		if err := s.db.WithContext(ctx).Model(&domain.Subscription{}).
			Where("id = ?", sub.ID).
			Update("status", domain.SubscriptionExpired).Error; err != nil {
			return nil, err
		}
		return nil, ErrNoActiveSubscription
	}
	return &sub, nil
}
