package participant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"meetuply/internal/config"
	"meetuply/internal/domain"
	"meetuply/internal/events"
	"meetuply/internal/modules/event"
	"meetuply/internal/modules/payment"
	"meetuply/internal/modules/wallet"
)

type stubGateway struct {
	cancelErr error
}

func (*stubGateway) Init(_ context.Context, req payment.InitRequest) (*payment.InitResponse, error) {
	return &payment.InitResponse{PaymentID: "500001", PaymentURL: "https://pay.example/" + req.OrderID}, nil
}

func (g *stubGateway) Cancel(_ context.Context, _ string, _ int64) error { return g.cancelErr }

func (*stubGateway) PayoutInit(_ context.Context, _ payment.PayoutRequest) (*payment.PayoutResponse, error) {
	return &payment.PayoutResponse{PaymentID: "400001"}, nil
}

func (*stubGateway) Payout(_ context.Context, _ string) error { return nil }

func (*stubGateway) AddCard(_ context.Context, _, _, _ string) (string, error) { return "card-1", nil }

type testEnv struct {
	db      *gorm.DB
	svc     *Service
	events  *event.Service
	wallets *wallet.Service
	gateway *stubGateway
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:participant_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	// One connection serializes concurrent transactions, which keeps the
	// capacity race test deterministic on sqlite.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&domain.User{}, &domain.Theme{}, &domain.Event{}, &domain.Participant{},
		&domain.Wallet{}, &domain.WalletHistory{}, &domain.TinkoffTransaction{},
	); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	gw := &stubGateway{}
	wallets := wallet.NewService(db, zap.NewNop())
	bus := events.NewBus(zap.NewNop())
	payments := payment.NewService(db, gw, wallets, bus, config.Tinkoff{TerminalKey: "TK", Password: "pw"}, zap.NewNop())
	eventSvc := event.NewService(db, wallets, payments, bus, zap.NewNop())
	svc := NewService(db, wallets, payments, eventSvc, bus, zap.NewNop())
	return &testEnv{db: db, svc: svc, events: eventSvc, wallets: wallets, gateway: gw}
}

func (env *testEnv) seedUser(t *testing.T, email string, g domain.Gender, birthYear int) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:     email,
		Gender:    g,
		BirthDate: time.Date(birthYear, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := env.db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func (env *testEnv) seedEvent(t *testing.T, pt domain.PaymentType, price int64, totalPeople *int, draft bool) (*domain.Event, *domain.User) {
	t.Helper()
	organizer := env.seedUser(t, fmt.Sprintf("org-%s@example.com", t.Name()), domain.GenderMale, 1990)
	organizer.CardID = "card-org"
	if err := env.db.Save(organizer).Error; err != nil {
		t.Fatalf("failed to save organizer: %v", err)
	}

	theme := &domain.Theme{Name: "games", PaymentType: pt, Price: price, CommissionPercent: 10}
	if err := env.db.Create(theme).Error; err != nil {
		t.Fatalf("failed to create theme: %v", err)
	}

	e := &domain.Event{
		Title:       "games night",
		MinAge:      18,
		MaxAge:      60,
		StartAt:     time.Now().Add(48 * time.Hour),
		EndAt:       time.Now().Add(52 * time.Hour),
		ThemeID:     theme.ID,
		OrganizerID: organizer.ID,
		IsDraft:     draft,
		IsActive:    true,
		TotalPeople: totalPeople,
	}
	if err := env.db.Create(e).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if err := env.db.Create(&domain.Participant{
		EventID: e.ID, UserID: organizer.ID, IsOrganizer: true, HasConfirmed: true,
	}).Error; err != nil {
		t.Fatalf("failed to create organizer row: %v", err)
	}
	return e, organizer
}

func intPtr(n int) *int { return &n }

func TestSignUpRejectsDraftEvent(t *testing.T) {
	env := setupTestEnv(t)
	e, _ := env.seedEvent(t, domain.PaymentTypeFree, 0, nil, true)
	user := env.seedUser(t, "u@example.com", domain.GenderFemale, 1995)

	_, err := env.svc.SignUp(context.Background(), e.ID, user.ID)
	if !errors.Is(err, ErrEventNotPublished) {
		t.Fatalf("expected ErrEventNotPublished, got %v", err)
	}
}

func TestSignUpRejectsDuplicate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, _ := env.seedEvent(t, domain.PaymentTypeFree, 0, nil, false)
	user := env.seedUser(t, "u@example.com", domain.GenderFemale, 1995)

	if _, err := env.svc.SignUp(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("first SignUp returned error: %v", err)
	}
	if _, err := env.svc.SignUp(ctx, e.ID, user.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestSignUpRejectsAgeOutsideRange(t *testing.T) {
	env := setupTestEnv(t)
	e, _ := env.seedEvent(t, domain.PaymentTypeFree, 0, nil, false)
	minor := env.seedUser(t, "minor@example.com", domain.GenderMale, time.Now().Year()-12)

	_, err := env.svc.SignUp(context.Background(), e.ID, minor.ID)
	if !errors.Is(err, ErrAgeNotEligible) {
		t.Fatalf("expected ErrAgeNotEligible, got %v", err)
	}
}

func TestSignUpRejectsWhenFull(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, _ := env.seedEvent(t, domain.PaymentTypeFree, 0, intPtr(2), false)

	first := env.seedUser(t, "first@example.com", domain.GenderFemale, 1995)
	if _, err := env.svc.SignUp(ctx, e.ID, first.ID); err != nil {
		t.Fatalf("first SignUp returned error: %v", err)
	}

	second := env.seedUser(t, "second@example.com", domain.GenderMale, 1996)
	if _, err := env.svc.SignUp(ctx, e.ID, second.ID); !errors.Is(err, ErrNoFreePlaces) {
		t.Fatalf("expected ErrNoFreePlaces, got %v", err)
	}
}

func TestSignUpWithoutCoinsFailsBeforeSeatTaken(t *testing.T) {
	env := setupTestEnv(t)
	e, _ := env.seedEvent(t, domain.PaymentTypeParticipantsPay, 100, nil, false)
	user := env.seedUser(t, "broke@example.com", domain.GenderFemale, 1995)

	_, err := env.svc.SignUp(context.Background(), e.ID, user.ID)
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	var count int64
	if err := env.db.Model(&domain.Participant{}).
		Where("event_id = ? AND user_id = ?", e.ID, user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatal("expected no participant row after failed payment")
	}
}

func TestSignUpWithCoinsSettlesBothLegs(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, organizer := env.seedEvent(t, domain.PaymentTypeParticipantsPay, 100, nil, false)
	user := env.seedUser(t, "payer@example.com", domain.GenderFemale, 1995)

	if _, err := env.wallets.Grant(ctx, user.ID, 120, "topup"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}

	result, err := env.svc.SignUp(ctx, e.ID, user.ID)
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if result.Participant.Payed != 100 {
		t.Fatalf("expected 100 coins recorded on the seat, got %d", result.Participant.Payed)
	}

	w, err := env.wallets.GetOrCreate(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if w.Balance != 20 {
		t.Fatalf("expected balance 20 after the fee, got %d", w.Balance)
	}

	var paymentLeg domain.TinkoffTransaction
	if err := env.db.Where("event_id = ? AND user_id = ? AND transaction_type = ?",
		e.ID, user.ID, domain.TransactionPayment).First(&paymentLeg).Error; err != nil {
		t.Fatalf("expected payment leg: %v", err)
	}
	if paymentLeg.Status != domain.TransactionSuccess {
		t.Fatalf("expected payment SUCCESS, got %s", paymentLeg.Status)
	}

	var transferLeg domain.TinkoffTransaction
	if err := env.db.Where("payment_uuid = ?", paymentLeg.UUID).First(&transferLeg).Error; err != nil {
		t.Fatalf("expected transfer leg: %v", err)
	}
	if transferLeg.Status != domain.TransactionSuccess {
		t.Fatalf("expected transfer SUCCESS, got %s", transferLeg.Status)
	}
	if transferLeg.Price != 90 {
		t.Fatalf("expected organizer share 90, got %d", transferLeg.Price)
	}
	if transferLeg.UserID != organizer.ID {
		t.Fatalf("expected transfer to organizer %d, got %d", organizer.ID, transferLeg.UserID)
	}
}

func TestConcurrentSignUpsNeverOverfill(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	// Four seats, one taken by the organizer: exactly three sign-ups can
	// win no matter how the eight racers interleave.
	e, _ := env.seedEvent(t, domain.PaymentTypeFree, 0, intPtr(4), false)

	const racers = 8
	users := make([]*domain.User, racers)
	for i := range users {
		users[i] = env.seedUser(t, fmt.Sprintf("racer%d@example.com", i), domain.GenderFemale, 1995)
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.SignUp(ctx, e.ID, users[i].ID)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrNoFreePlaces):
			lost++
		default:
			t.Fatalf("unexpected sign-up error: %v", err)
		}
	}
	if won != 3 || lost != racers-3 {
		t.Fatalf("expected 3 winners and %d losers, got %d/%d", racers-3, won, lost)
	}

	taken, err := countSeats(env.db, e.ID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if taken != 4 {
		t.Fatalf("expected exactly 4 seats taken, got %d", taken)
	}
}

func countSeats(db *gorm.DB, eventID int64) (int64, error) {
	var n int64
	err := db.Model(&domain.Participant{}).
		Where("event_id = ? AND kicked_by_organizer = ?", eventID, false).
		Count(&n).Error
	return n, err
}

func TestCancelRefundsAndFreesSeat(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, _ := env.seedEvent(t, domain.PaymentTypeParticipantsPay, 100, intPtr(2), false)
	user := env.seedUser(t, "leaver@example.com", domain.GenderFemale, 1995)

	if _, err := env.wallets.Grant(ctx, user.ID, 100, "topup"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if _, err := env.svc.SignUp(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	if err := env.svc.Cancel(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	w, err := env.wallets.GetOrCreate(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if w.Balance != 100 {
		t.Fatalf("expected full refund to 100, got %d", w.Balance)
	}

	// The freed seat can be taken again.
	next := env.seedUser(t, "next@example.com", domain.GenderMale, 1996)
	if _, err := env.wallets.Grant(ctx, next.ID, 100, "topup"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if _, err := env.svc.SignUp(ctx, e.ID, next.ID); err != nil {
		t.Fatalf("SignUp after a cancel returned error: %v", err)
	}
}

func TestOrganizerCancelUnpublishesEvent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, organizer := env.seedEvent(t, domain.PaymentTypeFree, 0, nil, false)

	if err := env.svc.Cancel(ctx, e.ID, organizer.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	var reloaded domain.Event
	if err := env.db.First(&reloaded, e.ID).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if !reloaded.IsDraft {
		t.Fatal("expected organizer cancellation to pull the event back to draft")
	}
}

func TestOrganizerCancelBlockedInsideEditWindow(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, organizer := env.seedEvent(t, domain.PaymentTypeFree, 0, nil, false)

	// Move the start inside the freeze window.
	if err := env.db.Model(&domain.Event{}).Where("id = ?", e.ID).
		Update("start_at", time.Now().Add(2*time.Hour)).Error; err != nil {
		t.Fatalf("failed to move start: %v", err)
	}

	if err := env.svc.Cancel(ctx, e.ID, organizer.ID); !errors.Is(err, event.ErrEditWindowClosed) {
		t.Fatalf("expected ErrEditWindowClosed, got %v", err)
	}

	var reloaded domain.Event
	if err := env.db.First(&reloaded, e.ID).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if reloaded.IsDraft {
		t.Fatal("expected event untouched")
	}
}

func TestKickRefundsAndAllowsRejoin(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, organizer := env.seedEvent(t, domain.PaymentTypeParticipantsPay, 100, intPtr(2), false)
	user := env.seedUser(t, "kicked@example.com", domain.GenderFemale, 1995)

	if _, err := env.wallets.Grant(ctx, user.ID, 100, "topup"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if _, err := env.svc.SignUp(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	if err := env.svc.Kick(ctx, e.ID, user.ID, user.ID); !errors.Is(err, ErrNotOrganizer) {
		t.Fatalf("expected ErrNotOrganizer, got %v", err)
	}
	if err := env.svc.Kick(ctx, e.ID, organizer.ID, 99999); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember for stranger, got %v", err)
	}
	if err := env.svc.Kick(ctx, e.ID, organizer.ID, user.ID); err != nil {
		t.Fatalf("Kick returned error: %v", err)
	}

	w, err := env.wallets.GetOrCreate(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if w.Balance != 100 {
		t.Fatalf("expected full refund to 100, got %d", w.Balance)
	}

	// The seat is free and the kicked user may sign up again.
	if _, err := env.svc.SignUp(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("SignUp after a kick returned error: %v", err)
	}
}

func TestCancelKeepsMembershipWhenRefundFails(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, _ := env.seedEvent(t, domain.PaymentTypeParticipantsPay, 100, intPtr(2), false)
	user := env.seedUser(t, "leaver@example.com", domain.GenderFemale, 1995)

	if _, err := env.wallets.Grant(ctx, user.ID, 100, "topup"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if _, err := env.svc.SignUp(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	// Rewrite the settled leg as a card payment so the refund has to go
	// through the gateway.
	if err := env.db.Model(&domain.TinkoffTransaction{}).
		Where("event_id = ? AND user_id = ? AND transaction_type = ?",
			e.ID, user.ID, domain.TransactionPayment).
		Update("payment_id", "500001").Error; err != nil {
		t.Fatalf("failed to rewrite payment leg: %v", err)
	}

	env.gateway.cancelErr = errors.New("gateway unavailable")
	if err := env.svc.Cancel(ctx, e.ID, user.ID); err == nil {
		t.Fatal("expected Cancel to fail while the gateway is down")
	}

	var count int64
	if err := env.db.Model(&domain.Participant{}).
		Where("event_id = ? AND user_id = ?", e.ID, user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatal("expected membership kept so the cancel can be retried")
	}

	env.gateway.cancelErr = nil
	if err := env.svc.Cancel(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("retried Cancel returned error: %v", err)
	}

	var leg domain.TinkoffTransaction
	if err := env.db.Where("event_id = ? AND user_id = ? AND transaction_type = ?",
		e.ID, user.ID, domain.TransactionPayment).First(&leg).Error; err != nil {
		t.Fatalf("failed to load payment leg: %v", err)
	}
	if leg.Status != domain.TransactionCanceled {
		t.Fatalf("expected CANCELED leg after the retry, got %s", leg.Status)
	}
	if err := env.db.Model(&domain.Participant{}).
		Where("event_id = ? AND user_id = ?", e.ID, user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatal("expected the seat released after the retry")
	}
}

func TestConfirmMarksAttendance(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	e, organizer := env.seedEvent(t, domain.PaymentTypeFree, 0, nil, false)
	user := env.seedUser(t, "guest@example.com", domain.GenderFemale, 1995)

	if _, err := env.svc.SignUp(ctx, e.ID, user.ID); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if err := env.svc.Confirm(ctx, e.ID, organizer.ID, user.ID); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	var p domain.Participant
	if err := env.db.Where("event_id = ? AND user_id = ?", e.ID, user.ID).First(&p).Error; err != nil {
		t.Fatalf("failed to load participant: %v", err)
	}
	if !p.HasConfirmed {
		t.Fatal("expected participant confirmed")
	}

	var reloaded domain.Event
	if err := env.db.First(&reloaded, e.ID).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if !reloaded.DidOrganizerMarking {
		t.Fatal("expected marking flag set on the event")
	}

	if err := env.svc.Confirm(ctx, e.ID, organizer.ID, 99999); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember for stranger, got %v", err)
	}
}
