package promo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"meetuply/internal/domain"
	"meetuply/internal/modules/wallet"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:promo_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Wallet{}, &domain.WalletHistory{},
		&domain.PromoCode{}, &domain.PromoCodeUsage{},
	); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return NewService(db, wallet.NewService(db, zap.NewNop()), zap.NewNop()), db
}

func TestRedeemCreditsOncePerUser(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	if err := db.Create(&domain.PromoCode{Code: "WELCOME50", Coins: 50, IsActive: true}).Error; err != nil {
		t.Fatalf("failed to seed code: %v", err)
	}

	w, err := svc.Redeem(ctx, 7, "welcome50")
	if err != nil {
		t.Fatalf("Redeem returned error: %v", err)
	}
	if w.Balance != 50 {
		t.Fatalf("expected balance 50, got %d", w.Balance)
	}

	if _, err := svc.Redeem(ctx, 7, "WELCOME50"); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}

	// A different user can still redeem the same code.
	if _, err := svc.Redeem(ctx, 8, "WELCOME50"); err != nil {
		t.Fatalf("Redeem for another user returned error: %v", err)
	}
}

func TestRedeemRejectsExpiredOrUnknown(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	if err := db.Create(&domain.PromoCode{Code: "OLD", Coins: 10, IsActive: true, ExpiresAt: &past}).Error; err != nil {
		t.Fatalf("failed to seed code: %v", err)
	}
	if err := db.Create(&domain.PromoCode{Code: "OFF", Coins: 10, IsActive: false}).Error; err != nil {
		t.Fatalf("failed to seed code: %v", err)
	}

	if _, err := svc.Redeem(ctx, 1, "OLD"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if _, err := svc.Redeem(ctx, 1, "OFF"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired for disabled code, got %v", err)
	}
	if _, err := svc.Redeem(ctx, 1, "NOPE"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}
