package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetuply/internal/domain"
	"meetuply/internal/modules/wallet"
)

// Service redeems promo codes into wallet coins. The unique
// (code, user) index makes each redemption happen at most once even
// under concurrent requests.
type Service struct {
	db      *gorm.DB
	wallets *wallet.Service
	log     *zap.Logger
}

func NewService(db *gorm.DB, wallets *wallet.Service, log *zap.Logger) *Service {
	return &Service{db: db, wallets: wallets, log: log}
}

func (s *Service) Redeem(ctx context.Context, userID int64, code string) (*domain.Wallet, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var promo domain.PromoCode
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if !promo.IsRedeemable(time.Now()) {
		return nil, ErrCodeExpired
	}

	usage := domain.PromoCodeUsage{PromoCodeID: promo.ID, UserID: userID}
	if err := s.db.WithContext(ctx).Create(&usage).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyRedeemed
		}
		return nil, err
	}

	w, err := s.wallets.Grant(ctx, userID, promo.Coins, fmt.Sprintf("promo code %s", code))
	if err != nil {
		return nil, err
	}

	s.log.Info("promo code redeemed",
		zap.Int64("user_id", userID),
		zap.String("code", code),
		zap.Int64("coins", promo.Coins))
	return w, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
