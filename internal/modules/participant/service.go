package participant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meetuply/internal/domain"
	"meetuply/internal/events"
	"meetuply/internal/modules/event"
	"meetuply/internal/modules/payment"
	"meetuply/internal/modules/wallet"
	"meetuply/internal/pkg/metrics"
)

// Service is the participant state machine. Sign-up checks run in a
// fixed order — published, membership, age, capacity, funds — inside a
// transaction holding the event row, so two concurrent sign-ups for the
// last seat cannot both pass the capacity check. The unique
// (event_id, user_id) index backstops the membership check.
type Service struct {
	db       *gorm.DB
	wallets  *wallet.Service
	payments *payment.Service
	eventSvc *event.Service
	bus      events.Publisher
	log      *zap.Logger
}

func NewService(db *gorm.DB, wallets *wallet.Service, payments *payment.Service, eventSvc *event.Service, bus events.Publisher, log *zap.Logger) *Service {
	return &Service{db: db, wallets: wallets, payments: payments, eventSvc: eventSvc, bus: bus, log: log}
}

type SignUpResult struct {
	Participant *domain.Participant
	// PaymentURL is set when the fee goes through the gateway; the
	// participant row appears once the payment callback confirms.
	PaymentURL string
}

// SignUp joins a user to an event, paying the fee from the wallet when
// the theme charges participants.
func (s *Service) SignUp(ctx context.Context, eventID, userID int64) (*SignUpResult, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	var created domain.Participant
	var paymentTxn *domain.TinkoffTransaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, theme, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		if err := s.checkEligibility(tx, e, &user); err != nil {
			return err
		}

		price := int64(0)
		if theme.RequiresParticipantPayment() {
			price = theme.Price
		}

		if price > 0 {
			var w domain.Wallet
			if err := s.wallets.SpendIn(tx, &w, userID, price, signUpReason(e.ID)); err != nil {
				return err
			}
			paymentTxn, err = s.payments.RecordWalletPayment(tx, e.ID, userID, domain.ProductParticipance, price)
			if err != nil {
				return err
			}
		}

		created = domain.Participant{
			EventID: e.ID,
			UserID:  userID,
			Payed:   price,
			QR:      uuid.NewString(),
		}
		if err := tx.Create(&created).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyMember
			}
			return err
		}
		return nil
	})
	if err != nil {
		metrics.SignUpsRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	metrics.SignUpsTotal.Inc()

	e, lookupErr := s.eventSvc.GetByID(ctx, eventID)
	if lookupErr != nil {
		s.log.Warn("event lookup failed after sign-up, notification skipped",
			zap.Int64("event_id", eventID),
			zap.Error(lookupErr))
	} else {
		s.bus.Publish(ctx, events.ParticipantJoined{
			EventID:     eventID,
			UserID:      userID,
			OrganizerID: e.OrganizerID,
			Title:       e.Title,
		})
	}

	if paymentTxn != nil {
		if err := s.payments.SettleTransfer(ctx, paymentTxn); err != nil {
			// The transfer leg stays PENDING; the seat is already taken.
			s.log.Error("transfer leg failed after wallet sign-up",
				zap.Int64("event_id", eventID),
				zap.Int64("user_id", userID),
				zap.Error(err))
		}
	}
	return &SignUpResult{Participant: &created}, nil
}

// SignUpWithGateway runs the same eligibility checks but routes the fee
// through the acquiring gateway. No seat is held: the participant row
// is created when the payment callback confirms, re-checking
// membership then.
func (s *Service) SignUpWithGateway(ctx context.Context, eventID, userID int64) (*SignUpResult, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	var e *domain.Event
	var theme *domain.Theme
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		e, theme, err = lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		return s.checkEligibility(tx, e, &user)
	})
	if err != nil {
		metrics.SignUpsRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	if !theme.RequiresParticipantPayment() {
		// Nothing to charge; fall through to the normal path.
		return s.SignUp(ctx, eventID, userID)
	}

	txn, err := s.payments.InitParticipantPayment(ctx, e, theme, &user)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{PaymentURL: txn.PaymentURL}, nil
}

// Cancel removes the caller from an event. The organizer leaving pulls
// the whole event back to draft; a regular member gets their payment
// refunded and their row deleted.
func (s *Service) Cancel(ctx context.Context, eventID, userID int64) error {
	var p domain.Participant
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}

	e, err := s.eventSvc.GetByID(ctx, eventID)
	if err != nil {
		return err
	}

	if p.IsOrganizer {
		if time.Now().After(e.StartAt.Add(-event.EditWindow)) {
			return event.ErrEditWindowClosed
		}
		return s.eventSvc.Unpublish(ctx, eventID, userID)
	}
	if time.Now().After(e.StartAt) {
		return ErrEventStarted
	}

	// Refund before releasing the seat: if the refund fails the
	// membership stays intact and the cancel can be retried. A retry
	// after a settled refund is covered by the CANCELED leg.
	if _, err := s.payments.RefundParticipant(ctx, eventID, userID, p.Payed); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&domain.Participant{}, p.ID).Error; err != nil {
		return err
	}

	memberIDs, err := s.memberIDs(ctx, eventID)
	if err != nil {
		s.log.Warn("member lookup failed after cancel, notification skipped",
			zap.Int64("event_id", eventID),
			zap.Error(err))
		return nil
	}
	s.bus.Publish(ctx, events.ParticipantLeft{
		EventID:        eventID,
		UserID:         userID,
		Title:          e.Title,
		ParticipantIDs: memberIDs,
	})
	return nil
}

// Kick removes a member on the organizer's behalf and refunds their
// payment. The seat is freed and the user may sign up again later.
func (s *Service) Kick(ctx context.Context, eventID, organizerID, userID int64) error {
	e, err := s.organizerEvent(ctx, eventID, organizerID)
	if err != nil {
		return err
	}

	var p domain.Participant
	err = s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND is_organizer = ?", eventID, userID, false).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}

	// Same ordering as Cancel: the row goes away only once the money
	// is back, so a failed refund leaves the kick retryable.
	if _, err := s.payments.RefundParticipant(ctx, eventID, userID, p.Payed); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&domain.Participant{}, p.ID).Error; err != nil {
		return err
	}

	s.bus.Publish(ctx, events.ParticipantKicked{EventID: eventID, UserID: userID, Title: e.Title})
	return nil
}

// Confirm lets the organizer mark a member as actually present. The
// first confirmation flips DidOrganizerMarking on the event.
func (s *Service) Confirm(ctx context.Context, eventID, organizerID, userID int64) error {
	e, err := s.organizerEvent(ctx, eventID, organizerID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Participant{}).
			Where("event_id = ? AND user_id = ? AND kicked_by_organizer = ?", eventID, userID, false).
			Update("has_confirmed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotMember
		}

		if !e.DidOrganizerMarking {
			if err := tx.Model(&domain.Event{}).Where("id = ?", eventID).
				Update("did_organizer_marking", true).Error; err != nil {
				return err
			}
		}

		s.bus.Publish(ctx, events.ParticipantConfirmed{EventID: eventID, UserID: userID, Title: e.Title})
		return nil
	})
}

// List returns the event's members, organizer first.
func (s *Service) List(ctx context.Context, eventID int64) ([]domain.Participant, error) {
	var list []domain.Participant
	err := s.db.WithContext(ctx).Preload("User").
		Where("event_id = ? AND kicked_by_organizer = ?", eventID, false).
		Order("is_organizer desc, created_at asc").
		Find(&list).Error
	return list, err
}

// checkEligibility runs the sign-up guards in their fixed order.
func (s *Service) checkEligibility(tx *gorm.DB, e *domain.Event, user *domain.User) error {
	if e.IsDraft || !e.IsActive {
		return ErrEventNotPublished
	}
	if time.Now().After(e.StartAt) {
		return ErrEventStarted
	}

	var existing domain.Participant
	err := tx.Where("event_id = ? AND user_id = ?", e.ID, user.ID).First(&existing).Error
	if err == nil {
		return ErrAlreadyMember
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	age := user.AgeAt(e.StartAt)
	if age < e.MinAge || age > e.MaxAge {
		return ErrAgeNotEligible
	}

	ok, err := event.HasFreePlaces(tx, e, user.Gender)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoFreePlaces
	}
	return nil
}

func (s *Service) organizerEvent(ctx context.Context, eventID, organizerID int64) (*domain.Event, error) {
	e, err := s.eventSvc.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != organizerID {
		return nil, ErrNotOrganizer
	}
	return e, nil
}

func (s *Service) memberIDs(ctx context.Context, eventID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("event_id = ? AND is_organizer = ? AND kicked_by_organizer = ?", eventID, false, false).
		Pluck("user_id", &ids).Error
	return ids, err
}

func lockEvent(tx *gorm.DB, eventID int64) (*domain.Event, *domain.Theme, error) {
	var e domain.Event
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, event.ErrEventNotFound
		}
		return nil, nil, err
	}
	var theme domain.Theme
	if err := tx.First(&theme, e.ThemeID).Error; err != nil {
		return nil, nil, err
	}
	return &e, &theme, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrNoFreePlaces):
		return "no_free_places"
	case errors.Is(err, ErrAgeNotEligible):
		return "age_not_eligible"
	case errors.Is(err, ErrEventNotPublished):
		return "not_published"
	case errors.Is(err, ErrEventStarted):
		return "started"
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "other"
	}
}

func signUpReason(eventID int64) string {
	return fmt.Sprintf("sign-up for event %d", eventID)
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
