package payout

import (
	"context"
	"strings"

	"github.com/EClaesson/go-luhn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetuply/internal/domain"
	"meetuply/internal/modules/payment"
)

// Service binds payout cards for organizers. The PAN is checked with
// the Luhn algorithm before it goes anywhere near the gateway, and only
// a masked form is ever stored.
type Service struct {
	db       *gorm.DB
	gateway  payment.GatewayClient
	payments *payment.Service
	log      *zap.Logger
}

func NewService(db *gorm.DB, gateway payment.GatewayClient, payments *payment.Service, log *zap.Logger) *Service {
	return &Service{db: db, gateway: gateway, payments: payments, log: log}
}

// AttachCard validates and binds a card, then retries any transfer legs
// that were waiting for the organizer to become payable.
func (s *Service) AttachCard(ctx context.Context, userID int64, pan, expDate string) (*domain.User, error) {
	pan = strings.ReplaceAll(pan, " ", "")
	valid, err := luhn.IsValid(pan)
	if err != nil || !valid {
		return nil, ErrInvalidCardNumber
	}
	if len(expDate) != 4 {
		return nil, ErrInvalidExpDate
	}

	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	cardID, err := s.gateway.AddCard(ctx, user.CustomerKey, pan, expDate)
	if err != nil {
		return nil, err
	}

	user.CardID = cardID
	user.CardPan = maskPan(pan)
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{"card_id": user.CardID, "card_pan": user.CardPan}).Error; err != nil {
		return nil, err
	}

	s.retryPendingTransfers(ctx, userID)
	return &user, nil
}

// retryPendingTransfers settles transfer legs that stalled on a missing
// payout card. Failures are logged and left PENDING for the next try.
func (s *Service) retryPendingTransfers(ctx context.Context, organizerID int64) {
	var transfers []domain.TinkoffTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND transaction_type = ? AND status = ?",
			organizerID, domain.TransactionTransfer, domain.TransactionPending).
		Find(&transfers).Error
	if err != nil {
		s.log.Error("failed to load pending transfers", zap.Int64("user_id", organizerID), zap.Error(err))
		return
	}

	for i := range transfers {
		if transfers[i].PaymentUUID == nil {
			continue
		}
		var paymentLeg domain.TinkoffTransaction
		if err := s.db.WithContext(ctx).
			Where("uuid = ?", *transfers[i].PaymentUUID).
			First(&paymentLeg).Error; err != nil {
			continue
		}
		if err := s.payments.SettleTransfer(ctx, &paymentLeg); err != nil {
			s.log.Warn("pending transfer still not settled",
				zap.String("transfer_uuid", transfers[i].UUID.String()),
				zap.Error(err))
		}
	}
}

func maskPan(pan string) string {
	if len(pan) < 10 {
		return pan
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}
