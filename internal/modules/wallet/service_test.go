package wallet

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
)

func setupTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:wallet_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Wallet{}, &domain.WalletHistory{}); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return NewService(db, zap.NewNop())
}

func TestGetOrCreateCreatesOnFirstRequest(t *testing.T) {
	svc := setupTestService(t)

	wallet, err := svc.GetOrCreate(context.Background(), 1001)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if wallet.Balance != 0 {
		t.Fatalf("expected zero initial balance, got %d", wallet.Balance)
	}

	again, err := svc.GetOrCreate(context.Background(), 1001)
	if err != nil {
		t.Fatalf("GetOrCreate second call returned error: %v", err)
	}
	if wallet.ID != again.ID {
		t.Fatalf("expected same wallet id, got %s and %s", wallet.ID, again.ID)
	}
}

func TestSpendRefundRoundTrip(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Grant(ctx, 101, 150, "promo"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}

	wallet, err := svc.Spend(ctx, 101, 40, "sign-up")
	if err != nil {
		t.Fatalf("Spend returned error: %v", err)
	}
	if wallet.Balance != 110 {
		t.Fatalf("expected balance 110, got %d", wallet.Balance)
	}

	wallet, err = svc.Refund(ctx, 101, 40, "cancel")
	if err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}
	if wallet.Balance != 150 {
		t.Fatalf("expected balance restored to 150, got %d", wallet.Balance)
	}

	rows, err := svc.History(ctx, 101)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 history rows (grant, spend, refund), got %d", len(rows))
	}
}

func TestSpendInsufficientFunds(t *testing.T) {
	svc := setupTestService(t)
	_, err := svc.Spend(context.Background(), 104, 10, "sign-up")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestSpendRejectsNonPositiveAmount(t *testing.T) {
	svc := setupTestService(t)
	_, err := svc.Spend(context.Background(), 102, 0, "sign-up")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestUnlimitedWalletSpendAndRefundAreNoOps(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Grant(ctx, 201, 50, "promo"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if err := svc.SetUnlimitedUntil(ctx, 201, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SetUnlimitedUntil returned error: %v", err)
	}

	wallet, err := svc.Spend(ctx, 201, 1000, "sign-up")
	if err != nil {
		t.Fatalf("Spend on unlimited wallet returned error: %v", err)
	}
	if wallet.Balance != 50 {
		t.Fatalf("expected unchanged balance 50, got %d", wallet.Balance)
	}

	wallet, err = svc.Refund(ctx, 201, 1000, "cancel")
	if err != nil {
		t.Fatalf("Refund on unlimited wallet returned error: %v", err)
	}
	if wallet.Balance != 50 {
		t.Fatalf("expected unchanged balance 50, got %d", wallet.Balance)
	}

	ok, err := svc.HasCoin(ctx, 201, 1_000_000)
	if err != nil {
		t.Fatalf("HasCoin returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected unlimited wallet to cover any amount")
	}

	rows, err := svc.History(ctx, 201)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the grant row, got %d rows", len(rows))
	}
}

func TestExpiredUnlimitedWalletSpendsNormally(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Grant(ctx, 202, 30, "promo"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if err := svc.SetUnlimitedUntil(ctx, 202, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SetUnlimitedUntil returned error: %v", err)
	}

	wallet, err := svc.Spend(ctx, 202, 10, "sign-up")
	if err != nil {
		t.Fatalf("Spend returned error: %v", err)
	}
	if wallet.Balance != 20 {
		t.Fatalf("expected balance 20, got %d", wallet.Balance)
	}
}
