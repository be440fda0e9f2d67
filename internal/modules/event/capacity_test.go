package event

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"meetuply/internal/domain"
)

func setupCapacityDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:capacity_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Theme{}, &domain.Event{}, &domain.Participant{}); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, g domain.Gender) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:     email,
		Gender:    g,
		BirthDate: time.Date(1994, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func seedCapacityEvent(t *testing.T, db *gorm.DB, totalPeople, totalMale, totalFemale *int) *domain.Event {
	t.Helper()
	theme := &domain.Theme{Name: "walks", PaymentType: domain.PaymentTypeFree}
	if err := db.Create(theme).Error; err != nil {
		t.Fatalf("failed to create theme: %v", err)
	}
	organizer := seedUser(t, db, fmt.Sprintf("org-%s@example.com", t.Name()), domain.GenderMale)
	e := &domain.Event{
		Title:       "walk",
		MinAge:      18,
		MaxAge:      99,
		StartAt:     time.Now().Add(24 * time.Hour),
		EndAt:       time.Now().Add(26 * time.Hour),
		ThemeID:     theme.ID,
		OrganizerID: organizer.ID,
		IsDraft:     false,
		IsActive:    true,
		TotalPeople: totalPeople,
		TotalMale:   totalMale,
		TotalFemale: totalFemale,
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if err := db.Create(&domain.Participant{EventID: e.ID, UserID: organizer.ID, IsOrganizer: true}).Error; err != nil {
		t.Fatalf("failed to create organizer row: %v", err)
	}
	return e
}

func join(t *testing.T, db *gorm.DB, e *domain.Event, u *domain.User, kicked bool) {
	t.Helper()
	p := &domain.Participant{EventID: e.ID, UserID: u.ID, KickedByOrganizer: kicked}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create participant: %v", err)
	}
}

func intPtr(n int) *int { return &n }

func TestFreePlacesTotalCapacity(t *testing.T) {
	db := setupCapacityDB(t)
	e := seedCapacityEvent(t, db, intPtr(3), nil, nil)

	free, err := FreePlaces(db, e)
	if err != nil {
		t.Fatalf("FreePlaces returned error: %v", err)
	}
	if free == nil || *free != 2 {
		t.Fatalf("expected 2 free seats beside the organizer, got %v", free)
	}

	join(t, db, e, seedUser(t, db, "a@example.com", domain.GenderFemale), false)
	join(t, db, e, seedUser(t, db, "b@example.com", domain.GenderMale), false)

	ok, err := HasFreePlaces(db, e, domain.GenderMale)
	if err != nil {
		t.Fatalf("HasFreePlaces returned error: %v", err)
	}
	if ok {
		t.Fatal("expected event full at 3/3")
	}
}

func TestFreePlacesPerGenderCapacity(t *testing.T) {
	db := setupCapacityDB(t)
	e := seedCapacityEvent(t, db, nil, intPtr(2), intPtr(1))

	// Organizer is male, so one male seat remains and the female seat is
	// untouched.
	join(t, db, e, seedUser(t, db, "m@example.com", domain.GenderMale), false)

	okMale, err := HasFreePlaces(db, e, domain.GenderMale)
	if err != nil {
		t.Fatalf("HasFreePlaces returned error: %v", err)
	}
	if okMale {
		t.Fatal("expected male seats exhausted")
	}

	okFemale, err := HasFreePlaces(db, e, domain.GenderFemale)
	if err != nil {
		t.Fatalf("HasFreePlaces returned error: %v", err)
	}
	if !okFemale {
		t.Fatal("expected a free female seat")
	}

	free, err := FreePlacesForGender(db, e, domain.GenderFemale)
	if err != nil {
		t.Fatalf("FreePlacesForGender returned error: %v", err)
	}
	if free == nil || *free != 1 {
		t.Fatalf("expected 1 free female seat, got %v", free)
	}
}

func TestFreePlacesSumsGenderCaps(t *testing.T) {
	db := setupCapacityDB(t)
	e := seedCapacityEvent(t, db, nil, intPtr(2), intPtr(2))

	// Gender-capped events still report an overall count: the sum of
	// both caps minus everyone seated.
	join(t, db, e, seedUser(t, db, "f@example.com", domain.GenderFemale), false)

	free, err := FreePlaces(db, e)
	if err != nil {
		t.Fatalf("FreePlaces returned error: %v", err)
	}
	if free == nil || *free != 2 {
		t.Fatalf("expected 2 free seats out of 4, got %v", free)
	}
}

func TestUnboundedEventAlwaysHasRoom(t *testing.T) {
	db := setupCapacityDB(t)
	e := seedCapacityEvent(t, db, nil, nil, nil)

	for i := 0; i < 5; i++ {
		join(t, db, e, seedUser(t, db, fmt.Sprintf("u%d@example.com", i), domain.GenderFemale), false)
	}

	ok, err := HasFreePlaces(db, e, domain.GenderFemale)
	if err != nil {
		t.Fatalf("HasFreePlaces returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected unbounded event to always have room")
	}

	free, err := FreePlaces(db, e)
	if err != nil {
		t.Fatalf("FreePlaces returned error: %v", err)
	}
	if free != nil {
		t.Fatalf("expected nil free count for unbounded event, got %d", *free)
	}
}

func TestKickedParticipantsFreeTheirSeat(t *testing.T) {
	db := setupCapacityDB(t)
	e := seedCapacityEvent(t, db, intPtr(2), nil, nil)

	join(t, db, e, seedUser(t, db, "kicked@example.com", domain.GenderMale), true)

	ok, err := HasFreePlaces(db, e, domain.GenderMale)
	if err != nil {
		t.Fatalf("HasFreePlaces returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected kicked participant not to hold a seat")
	}
}
