package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meetuply/internal/domain"
)

// Service is the coin ledger. Every balance mutation runs inside a
// transaction with the wallet row locked FOR UPDATE, and appends an
// immutable WalletHistory row. While the wallet is unlimited, Spend and
// Refund are no-ops.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

func (s *Service) GetOrCreate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := s.getByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet = &domain.Wallet{UserID: userID, Balance: 0}
	if err := s.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if isUniqueConstraintError(err) {
			return s.getByUserID(ctx, userID)
		}
		return nil, err
	}
	return wallet, nil
}

// HasCoin reports whether the wallet can cover amount: unlimited active
// or balance at least amount.
func (s *Service) HasCoin(ctx context.Context, userID int64, amount int64) (bool, error) {
	wallet, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	if wallet.IsUnlimited(time.Now()) {
		return true, nil
	}
	return wallet.Balance >= amount, nil
}

func (s *Service) Spend(ctx context.Context, userID int64, amount int64, reason string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.SpendIn(tx, &wallet, userID, amount, reason)
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// SpendIn runs the spend inside the caller's transaction so seat
// allocation and coin debit commit together.
func (s *Service) SpendIn(tx *gorm.DB, wallet *domain.Wallet, userID int64, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := getOrCreateForUpdate(tx, userID, wallet); err != nil {
		return err
	}
	if wallet.IsUnlimited(time.Now()) {
		return nil
	}
	if wallet.Balance < amount {
		return ErrInsufficientFunds
	}

	wallet.Balance -= amount
	if err := tx.Model(&domain.Wallet{}).Where("id = ?", wallet.ID).Update("balance", wallet.Balance).Error; err != nil {
		return err
	}
	return appendHistory(tx, wallet.ID, amount, domain.WalletOperationSpend, reason)
}

func (s *Service) Refund(ctx context.Context, userID int64, amount int64, reason string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.RefundIn(tx, &wallet, userID, amount, reason)
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// RefundIn credits back a previous spend inside the caller's
// transaction. No-op while the wallet is unlimited.
func (s *Service) RefundIn(tx *gorm.DB, wallet *domain.Wallet, userID int64, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := getOrCreateForUpdate(tx, userID, wallet); err != nil {
		return err
	}
	if wallet.IsUnlimited(time.Now()) {
		return nil
	}

	wallet.Balance += amount
	if err := tx.Model(&domain.Wallet{}).Where("id = ?", wallet.ID).Update("balance", wallet.Balance).Error; err != nil {
		return err
	}
	return appendHistory(tx, wallet.ID, amount, domain.WalletOperationRefund, reason)
}

// Grant credits coins unconditionally (promo codes, admin top-ups).
// Applies even to unlimited wallets: the coins survive expiry.
func (s *Service) Grant(ctx context.Context, userID int64, amount int64, reason string) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var wallet domain.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := getOrCreateForUpdate(tx, userID, &wallet); err != nil {
			return err
		}
		wallet.Balance += amount
		if err := tx.Model(&domain.Wallet{}).Where("id = ?", wallet.ID).Update("balance", wallet.Balance).Error; err != nil {
			return err
		}
		return appendHistory(tx, wallet.ID, amount, domain.WalletOperationReplenishment, reason)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("coins granted",
		zap.Int64("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason))
	return &wallet, nil
}

// SetUnlimitedUntil activates or extends the unlimited window.
func (s *Service) SetUnlimitedUntil(ctx context.Context, userID int64, until time.Time) error {
	wallet, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&domain.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("unlimited_until", until).Error
}

func (s *Service) History(ctx context.Context, userID int64) ([]domain.WalletHistory, error) {
	wallet, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var rows []domain.WalletHistory
	if err := s.db.WithContext(ctx).Where("wallet_id = ?", wallet.ID).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) getByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func appendHistory(tx *gorm.DB, walletID uuid.UUID, amount int64, op, reason string) error {
	row := domain.WalletHistory{WalletID: walletID, Amount: amount, OperationType: op, Reason: reason}
	return tx.Create(&row).Error
}

func getOrCreateForUpdate(tx *gorm.DB, userID int64, wallet *domain.Wallet) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(wallet).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		*wallet = domain.Wallet{UserID: userID, Balance: 0}
		if err := tx.Create(wallet).Error; err != nil {
			if isUniqueConstraintError(err) {
				return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(wallet).Error
			}
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite wraps the violation in a plain error message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
