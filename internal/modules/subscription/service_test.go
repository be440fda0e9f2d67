package subscription

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

func setupTestService(t *testing.T) (*Service, *wallet.Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:subscription_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Wallet{}, &domain.WalletHistory{}, &domain.Subscription{}); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	wallets := wallet.NewService(db, zap.NewNop())
	return NewService(db, wallets, zap.NewNop()), wallets, db
}

func TestSubscribeOpensUnlimitedWindow(t *testing.T) {
	svc, wallets, _ := setupTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, 1, domain.BillingMonthly)
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if sub.Status != domain.SubscriptionActive {
		t.Fatalf("expected active subscription, got %s", sub.Status)
	}

	w, err := wallets.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if !w.IsUnlimited(time.Now()) {
		t.Fatal("expected wallet unlimited while subscribed")
	}

	// A second plan on top of a live one is rejected.
	if _, err := svc.Subscribe(ctx, 1, domain.BillingYearly); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
}

func TestCancelClosesUnlimitedWindow(t *testing.T) {
	svc, wallets, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, 1, domain.BillingYearly); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if err := svc.Cancel(ctx, 1, "too expensive"); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	if _, err := svc.Active(ctx, 1); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}
	w, err := wallets.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if w.IsUnlimited(time.Now().Add(time.Minute)) {
		t.Fatal("expected unlimited window closed after cancel")
	}

	// Cancelling leaves the user free to subscribe again.
	if _, err := svc.Subscribe(ctx, 1, domain.BillingMonthly); err != nil {
		t.Fatalf("re-subscribe returned error: %v", err)
	}
}

func TestActiveExpiresLazily(t *testing.T) {
	svc, _, db := setupTestService(t)
	ctx := context.Background()

	sub := &domain.Subscription{
		ID:            "sub-old",
		UserID:        2,
		Status:        domain.SubscriptionActive,
		BillingPeriod: domain.BillingMonthly,
		StartedAt:     time.Now().AddDate(0, -2, 0),
		ExpiresAt:     time.Now().AddDate(0, -1, 0),
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}

	if _, err := svc.Active(ctx, 2); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription for expired plan, got %v", err)
	}

	var stored domain.Subscription
	if err := db.First(&stored, "id = ?", "sub-old").Error; err != nil {
		t.Fatalf("failed to reload subscription: %v", err)
	}
	if stored.Status != domain.SubscriptionExpired {
		t.Fatalf("expected plan flipped to expired, got %s", stored.Status)
	}
}
