package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetuply/internal/domain"
	"meetuply/internal/events"
	"meetuply/internal/modules/payment"
	"meetuply/internal/modules/wallet"
)

// EditWindow is how long before the start the event freezes: no edits
// and no organizer cancellation inside the window.
const EditWindow = 3 * time.Hour

// Service owns the event lifecycle: draft, published, cancelled. The
// organizer holds a participant row from the moment the event exists,
// inserted in the same transaction.
type Service struct {
	db       *gorm.DB
	wallets  *wallet.Service
	payments *payment.Service
	bus      events.Publisher
	log      *zap.Logger
}

func NewService(db *gorm.DB, wallets *wallet.Service, payments *payment.Service, bus events.Publisher, log *zap.Logger) *Service {
	return &Service{db: db, wallets: wallets, payments: payments, bus: bus, log: log}
}

// CreateResult carries the new event plus, when the organization fee
// went through the gateway, the redirect URL to complete it.
type CreateResult struct {
	Event      *domain.Event
	PaymentURL string
}

// Create stores a new event together with the organizer's participant
// row. With IsDraft false the event is published immediately, settling
// the organization fee from the wallet unless PayWithGateway routes it
// through the acquiring gateway; in that case the event stays draft
// until the payment callback confirms.
func (s *Service) Create(ctx context.Context, organizerID int64, req CreateEventRequest) (*CreateResult, error) {
	if req.MinAge >= req.MaxAge {
		return nil, ErrInvalidAgeRange
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, ErrInvalidTimeRange
	}

	var theme domain.Theme
	if err := s.db.WithContext(ctx).First(&theme, req.ThemeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("theme %d: %w", req.ThemeID, ErrEventNotFound)
		}
		return nil, err
	}

	e := &domain.Event{
		Title:            req.Title,
		MinAge:           req.MinAge,
		MaxAge:           req.MaxAge,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		ThemeID:          theme.ID,
		OrganizerID:      organizerID,
		IsDraft:          true,
		IsActive:         true,
		IsCloseEvent:     req.IsCloseEvent,
		OrganizerWillPay: req.OrganizerWillPay,
	}
	if err := applyCapacitySpec(e, req.CapacitySpec, 0, 0, 0); err != nil {
		return nil, err
	}

	needsFee := theme.RequiresOrganizerPayment()
	publishNow := !req.IsDraft && (!needsFee || !req.PayWithGateway)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e.IsDraft = !publishNow
		if err := tx.Create(e).Error; err != nil {
			return err
		}

		organizer := domain.Participant{
			EventID:      e.ID,
			UserID:       organizerID,
			IsOrganizer:  true,
			HasConfirmed: true,
			QR:           uuid.NewString(),
		}
		if err := tx.Create(&organizer).Error; err != nil {
			return err
		}

		if publishNow && needsFee {
			return s.settleOrganizerFeeIn(tx, e, &theme, organizerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Event: e}

	if !req.IsDraft && needsFee && req.PayWithGateway {
		url, err := s.initGatewayFee(ctx, e, &theme, organizerID)
		if err != nil {
			return nil, err
		}
		result.PaymentURL = url
		return result, nil
	}

	if publishNow {
		s.bus.Publish(ctx, events.EventPublished{EventID: e.ID, OrganizerID: organizerID, Title: e.Title})
	}
	return result, nil
}

// Publish takes a draft live. The organization fee, when the theme
// requires one and it was not settled earlier, is charged the same way
// as on create.
func (s *Service) Publish(ctx context.Context, eventID, organizerID int64, payWithGateway bool) (*CreateResult, error) {
	e, err := s.ownedEvent(ctx, eventID, organizerID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, ErrEventInactive
	}
	if !e.IsDraft {
		return nil, ErrAlreadyPublished
	}
	if time.Now().After(e.StartAt) {
		return nil, ErrEventStarted
	}

	theme := e.Theme
	if theme == nil {
		return nil, fmt.Errorf("event %d has no theme", e.ID)
	}

	needsFee := theme.RequiresOrganizerPayment() && !e.PaidByOrganizer

	if needsFee && payWithGateway {
		url, err := s.initGatewayFee(ctx, e, theme, organizerID)
		if err != nil {
			return nil, err
		}
		return &CreateResult{Event: e, PaymentURL: url}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if needsFee {
			if err := s.settleOrganizerFeeIn(tx, e, theme, organizerID); err != nil {
				return err
			}
		}
		e.IsDraft = false
		return tx.Model(&domain.Event{}).Where("id = ?", e.ID).Update("is_draft", false).Error
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.EventPublished{EventID: e.ID, OrganizerID: organizerID, Title: e.Title})
	return &CreateResult{Event: e}, nil
}

// Unpublish pulls a published event back to draft. Every participant
// payment is refunded and the non-organizer participants are removed;
// the organization fee stays settled so re-publishing does not charge
// twice.
func (s *Service) Unpublish(ctx context.Context, eventID, organizerID int64) error {
	e, err := s.ownedEvent(ctx, eventID, organizerID)
	if err != nil {
		return err
	}
	if e.IsDraft {
		return ErrEventNotPublished
	}

	memberIDs, err := s.memberIDs(ctx, e.ID)
	if err != nil {
		return err
	}

	if err := s.payments.RefundEventPayments(ctx, e, false); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ? AND is_organizer = ?", e.ID, false).
			Delete(&domain.Participant{}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Event{}).Where("id = ?", e.ID).Update("is_draft", true).Error
	})
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, events.EventUnpublished{
		EventID:        e.ID,
		OrganizerID:    organizerID,
		Title:          e.Title,
		ParticipantIDs: memberIDs,
	})
	return nil
}

// CancelByOrganizer cancels a published event. Allowed only up to the
// edit window before the start; every settled payment, the organization
// fee included, is refunded.
func (s *Service) CancelByOrganizer(ctx context.Context, eventID, organizerID int64, now time.Time) error {
	e, err := s.ownedEvent(ctx, eventID, organizerID)
	if err != nil {
		return err
	}
	if !e.IsActive {
		return ErrEventInactive
	}
	if now.After(e.StartAt.Add(-EditWindow)) {
		return ErrEditWindowClosed
	}

	memberIDs, err := s.memberIDs(ctx, e.ID)
	if err != nil {
		return err
	}

	if err := s.payments.RefundEventPayments(ctx, e, true); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&domain.Event{}).
		Where("id = ?", e.ID).Update("is_active", false).Error; err != nil {
		return err
	}

	s.bus.Publish(ctx, events.EventCancelled{
		EventID:        e.ID,
		OrganizerID:    organizerID,
		Title:          e.Title,
		ParticipantIDs: memberIDs,
	})
	return nil
}

// Update edits an event. Published events freeze inside the edit
// window. Shrinking capacity below the seats already taken is rejected
// rather than evicting anyone.
func (s *Service) Update(ctx context.Context, eventID, organizerID int64, req UpdateEventRequest) (*domain.Event, error) {
	e, err := s.ownedEvent(ctx, eventID, organizerID)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, ErrEventInactive
	}
	if !e.IsDraft && time.Now().After(e.StartAt.Add(-EditWindow)) {
		return nil, ErrEditWindowClosed
	}

	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.MinAge != nil {
		e.MinAge = *req.MinAge
	}
	if req.MaxAge != nil {
		e.MaxAge = *req.MaxAge
	}
	if e.MinAge >= e.MaxAge {
		return nil, ErrInvalidAgeRange
	}
	if req.StartAt != nil {
		e.StartAt = *req.StartAt
	}
	if req.EndAt != nil {
		e.EndAt = *req.EndAt
	}
	if !e.EndAt.After(e.StartAt) {
		return nil, ErrInvalidTimeRange
	}
	if req.IsCloseEvent != nil {
		e.IsCloseEvent = *req.IsCloseEvent
	}

	if !req.CapacitySpec.empty() {
		taken, err := countParticipants(s.db.WithContext(ctx), e.ID)
		if err != nil {
			return nil, err
		}
		males, err := countParticipantsByGender(s.db.WithContext(ctx), e.ID, domain.GenderMale)
		if err != nil {
			return nil, err
		}
		females, err := countParticipantsByGender(s.db.WithContext(ctx), e.ID, domain.GenderFemale)
		if err != nil {
			return nil, err
		}
		if err := applyCapacitySpec(e, req.CapacitySpec, int(taken), int(males), int(females)); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(&domain.Event{}).Where("id = ?", e.ID).
		Updates(map[string]any{
			"title":          e.Title,
			"min_age":        e.MinAge,
			"max_age":        e.MaxAge,
			"start_at":       e.StartAt,
			"end_at":         e.EndAt,
			"is_close_event": e.IsCloseEvent,
			"total_people":   e.TotalPeople,
			"total_male":     e.TotalMale,
			"total_female":   e.TotalFemale,
		}).Error; err != nil {
		return nil, err
	}

	memberIDs, err := s.memberIDs(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, events.EventUpdated{EventID: e.ID, Title: e.Title, ParticipantIDs: memberIDs})
	return e, nil
}

// Delete removes an event. Drafts are removed outright; a published
// event is deactivated, refunding every payer when it has not started
// yet. Listings only ever query active rows, there is no implicit
// deleted-filter to rely on.
func (s *Service) Delete(ctx context.Context, eventID, organizerID int64) error {
	e, err := s.ownedEvent(ctx, eventID, organizerID)
	if err != nil {
		return err
	}

	if e.IsDraft {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("event_id = ?", e.ID).Delete(&domain.Participant{}).Error; err != nil {
				return err
			}
			return tx.Delete(&domain.Event{}, e.ID).Error
		})
	}

	memberIDs, err := s.memberIDs(ctx, e.ID)
	if err != nil {
		return err
	}
	if time.Now().Before(e.StartAt) {
		if err := s.payments.RefundEventPayments(ctx, e, true); err != nil {
			return err
		}
	}
	if err := s.db.WithContext(ctx).Model(&domain.Event{}).
		Where("id = ?", e.ID).Update("is_active", false).Error; err != nil {
		return err
	}

	s.bus.Publish(ctx, events.EventCancelled{
		EventID:        e.ID,
		OrganizerID:    organizerID,
		Title:          e.Title,
		ParticipantIDs: memberIDs,
	})
	return nil
}

func (s *Service) GetByID(ctx context.Context, eventID int64) (*domain.Event, error) {
	var e domain.Event
	if err := s.db.WithContext(ctx).Preload("Theme").First(&e, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListActive returns published upcoming events, soonest first.
func (s *Service) ListActive(ctx context.Context) ([]domain.Event, error) {
	var list []domain.Event
	err := s.db.WithContext(ctx).Preload("Theme").
		Where("is_draft = ? AND is_active = ? AND start_at > ?", false, true, time.Now()).
		Order("start_at asc").
		Find(&list).Error
	return list, err
}

// ListByOrganizer returns all of a user's events, drafts included.
func (s *Service) ListByOrganizer(ctx context.Context, organizerID int64) ([]domain.Event, error) {
	var list []domain.Event
	err := s.db.WithContext(ctx).Preload("Theme").
		Where("organizer_id = ?", organizerID).
		Order("start_at asc").
		Find(&list).Error
	return list, err
}

func (s *Service) ownedEvent(ctx context.Context, eventID, organizerID int64) (*domain.Event, error) {
	e, err := s.GetByID(ctx, eventID)
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

// settleOrganizerFeeIn debits the fee from the organizer's wallet and
// records the payment leg inside the caller's transaction, then marks
// the event paid.
func (s *Service) settleOrganizerFeeIn(tx *gorm.DB, e *domain.Event, theme *domain.Theme, organizerID int64) error {
	var w domain.Wallet
	if err := s.wallets.SpendIn(tx, &w, organizerID, theme.Price, fmt.Sprintf("organization fee for event %d", e.ID)); err != nil {
		return err
	}
	if _, err := s.payments.RecordWalletPayment(tx, e.ID, organizerID, domain.ProductOrganization, theme.Price); err != nil {
		return err
	}
	e.PaidByOrganizer = true
	return tx.Model(&domain.Event{}).Where("id = ?", e.ID).Update("paid_by_organizer", true).Error
}

func (s *Service) initGatewayFee(ctx context.Context, e *domain.Event, theme *domain.Theme, organizerID int64) (string, error) {
	var organizer domain.User
	if err := s.db.WithContext(ctx).First(&organizer, organizerID).Error; err != nil {
		return "", err
	}
	txn, err := s.payments.InitOrganizerPayment(ctx, e, theme, &organizer)
	if err != nil {
		return "", err
	}
	return txn.PaymentURL, nil
}

// applyCapacitySpec writes one capacity shape onto the event, clearing
// the other. The gender pair must arrive complete. Occupancy counts
// guard against shrinking below the seats already taken.
func applyCapacitySpec(e *domain.Event, spec CapacitySpec, taken, males, females int) error {
	if spec.empty() {
		return nil
	}
	if spec.hasTotal() && spec.hasGender() {
		return ErrCapacityConflict
	}

	if spec.hasTotal() {
		if *spec.TotalPeople < taken {
			return ErrCapacityBelowOccupancy
		}
		e.TotalPeople = spec.TotalPeople
		e.TotalMale = nil
		e.TotalFemale = nil
		return nil
	}

	if spec.TotalMale == nil || spec.TotalFemale == nil {
		return ErrCapacityConflict
	}
	if *spec.TotalMale < males || *spec.TotalFemale < females {
		return ErrCapacityBelowOccupancy
	}
	e.TotalMale = spec.TotalMale
	e.TotalFemale = spec.TotalFemale
	e.TotalPeople = nil
	return nil
}
