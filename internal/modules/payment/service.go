package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meetuply/internal/config"
	"meetuply/internal/domain"
	"meetuply/internal/events"
	"meetuply/internal/modules/wallet"
	"meetuply/internal/pkg/metrics"
)

const minorUnitsPerCoin = 100

// Service drives the two-leg split payment: the inbound leg from the
// payer to the platform and the outbound transfer of the organizer's
// share. Each leg is a separate TinkoffTransaction row so retries of
// any step execute at most once.
type Service struct {
	db      *gorm.DB
	gateway GatewayClient
	wallets *wallet.Service
	bus     events.Publisher
	cfg     config.Tinkoff
	log     *zap.Logger
}

func NewService(db *gorm.DB, gateway GatewayClient, wallets *wallet.Service, bus events.Publisher, cfg config.Tinkoff, log *zap.Logger) *Service {
	return &Service{db: db, gateway: gateway, wallets: wallets, bus: bus, cfg: cfg, log: log}
}

// InitOrganizerPayment starts the gateway payment an organizer owes
// when publishing an organizer-pays event. Returns the transaction
// carrying the redirect URL.
func (s *Service) InitOrganizerPayment(ctx context.Context, event *domain.Event, theme *domain.Theme, organizer *domain.User) (*domain.TinkoffTransaction, error) {
	desc := fmt.Sprintf("Organization fee for %q", event.Title)
	return s.initPayment(ctx, event, organizer, domain.ProductOrganization, theme.Price, desc)
}

// InitParticipantPayment starts the gateway payment leg for a
// participant who cannot (or chose not to) pay with coins.
func (s *Service) InitParticipantPayment(ctx context.Context, event *domain.Event, theme *domain.Theme, user *domain.User) (*domain.TinkoffTransaction, error) {
	desc := fmt.Sprintf("Participation in %q", event.Title)
	return s.initPayment(ctx, event, user, domain.ProductParticipance, theme.Price, desc)
}

func (s *Service) initPayment(ctx context.Context, event *domain.Event, payer *domain.User, product domain.ProductType, price int64, description string) (*domain.TinkoffTransaction, error) {
	txn := &domain.TinkoffTransaction{
		UUID:            uuid.New(),
		UserID:          payer.ID,
		EventID:         event.ID,
		ProductType:     product,
		TransactionType: domain.TransactionPayment,
		Status:          domain.TransactionPending,
		Price:           price,
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}

	resp, err := s.gateway.Init(ctx, InitRequest{
		Amount:      price * minorUnitsPerCoin,
		OrderID:     txn.UUID.String(),
		CustomerKey: payer.CustomerKey,
		Description: description,
	})
	if err != nil {
		s.markFailed(ctx, txn, err.Error())
		metrics.PaymentsTotal.WithLabelValues(string(domain.TransactionFailed)).Inc()
		return nil, err
	}

	txn.PaymentID = resp.PaymentID
	txn.PaymentURL = resp.PaymentURL
	if err := s.db.WithContext(ctx).Model(txn).Updates(map[string]any{
		"payment_id":  resp.PaymentID,
		"payment_url": resp.PaymentURL,
	}).Error; err != nil {
		return nil, err
	}

	s.log.Info("payment initiated",
		zap.String("uuid", txn.UUID.String()),
		zap.String("product", string(product)),
		zap.Int64("event_id", event.ID),
		zap.Int64("user_id", payer.ID),
		zap.Int64("price", price))
	return txn, nil
}

// RecordWalletPayment writes the SUCCESS payment leg for a purchase
// already settled in coins. Runs inside the caller's transaction so the
// coin debit and the ledger row commit together.
func (s *Service) RecordWalletPayment(tx *gorm.DB, eventID, userID int64, product domain.ProductType, amount int64) (*domain.TinkoffTransaction, error) {
	txn := &domain.TinkoffTransaction{
		UUID:            uuid.New(),
		UserID:          userID,
		EventID:         eventID,
		ProductType:     product,
		TransactionType: domain.TransactionPayment,
		Status:          domain.TransactionSuccess,
		Price:           amount,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	metrics.PaymentsTotal.WithLabelValues(string(domain.TransactionSuccess)).Inc()
	return txn, nil
}

// HandleWebhook finalizes a pending transaction from a gateway
// callback. Delivery is at-least-once and possibly out of order: the
// transaction is matched by (uuid, payment_id, non-final status) under
// a row lock, so replays find nothing to do.
func (s *Service) HandleWebhook(ctx context.Context, p WebhookPayload) error {
	password, err := s.passwordForTerminal(p.TerminalKey)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("unknown_terminal").Inc()
		return err
	}
	if !strings.EqualFold(WebhookToken(p, password), p.Token) {
		metrics.WebhooksTotal.WithLabelValues("invalid_token").Inc()
		return ErrInvalidToken
	}

	orderUUID, err := uuid.Parse(p.OrderID)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("stale").Inc()
		return ErrUnknownOrStaleTransaction
	}

	var txn domain.TinkoffTransaction
	var settled, amountMismatch bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ? AND payment_id = ? AND status IN ?", orderUUID, p.PaymentID.String(),
				[]domain.TransactionStatus{domain.TransactionPending, domain.TransactionMoneyHold}).
			First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownOrStaleTransaction
			}
			return err
		}

		if p.Status == StatusAuthorized {
			// Two-stage capture hold; no side effects until CONFIRMED.
			return tx.Model(&txn).Update("status", domain.TransactionMoneyHold).Error
		}

		if !p.Success {
			reason := fmt.Sprintf("gateway status=%s error_code=%s", p.Status, p.ErrorCode)
			if err := tx.Model(&txn).Updates(map[string]any{
				"status":         domain.TransactionFailed,
				"failure_reason": reason,
			}).Error; err != nil {
				return err
			}
			txn.Status = domain.TransactionFailed
			txn.FailureReason = reason
			return nil
		}

		if p.Amount != txn.Price*minorUnitsPerCoin {
			// Return nil so the FAILED mark commits; an error here would
			// roll it back and leave the row PENDING for the next replay.
			reason := fmt.Sprintf("amount mismatch: callback=%d expected=%d", p.Amount, txn.Price*minorUnitsPerCoin)
			if err := tx.Model(&txn).Updates(map[string]any{
				"status":         domain.TransactionFailed,
				"failure_reason": reason,
			}).Error; err != nil {
				return err
			}
			txn.Status = domain.TransactionFailed
			txn.FailureReason = reason
			amountMismatch = true
			return nil
		}

		if err := tx.Model(&txn).Update("status", domain.TransactionSuccess).Error; err != nil {
			return err
		}
		txn.Status = domain.TransactionSuccess
		settled = true

		switch txn.ProductType {
		case domain.ProductOrganization:
			// The event was held in draft until the fee cleared.
			return tx.Model(&domain.Event{}).Where("id = ?", txn.EventID).
				Updates(map[string]any{"paid_by_organizer": true, "is_draft": false}).Error
		case domain.ProductParticipance:
			return ensureParticipant(tx, txn.EventID, txn.UserID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownOrStaleTransaction) {
			metrics.WebhooksTotal.WithLabelValues("stale").Inc()
		}
		return err
	}

	if !settled {
		if txn.Status == domain.TransactionFailed {
			metrics.PaymentsTotal.WithLabelValues(string(domain.TransactionFailed)).Inc()
			metrics.WebhooksTotal.WithLabelValues("failed").Inc()
			s.bus.Publish(ctx, events.PaymentFailed{
				EventID: txn.EventID,
				UserID:  txn.UserID,
				Amount:  txn.Price,
				Reason:  txn.FailureReason,
			})
		}
		if amountMismatch {
			return ErrAmountMismatch
		}
		return nil
	}

	metrics.PaymentsTotal.WithLabelValues(string(domain.TransactionSuccess)).Inc()
	metrics.WebhooksTotal.WithLabelValues("confirmed").Inc()
	s.bus.Publish(ctx, events.PaymentSucceeded{
		EventID: txn.EventID,
		UserID:  txn.UserID,
		Amount:  txn.Price,
		Product: string(txn.ProductType),
	})

	if txn.ProductType == domain.ProductParticipance {
		if err := s.SettleTransfer(ctx, &txn); err != nil {
			// The transfer leg stays PENDING and can be re-triggered; the
			// inbound confirmation must not be lost over it.
			s.log.Error("transfer leg failed",
				zap.String("payment_uuid", txn.UUID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// SettleTransfer ensures the outbound leg for a confirmed participant
// payment exists and executes it. The TRANSFER row is keyed by the
// payment's uuid, so a retried webhook or a manual re-trigger reuses
// the same leg instead of paying the organizer twice.
func (s *Service) SettleTransfer(ctx context.Context, paymentTxn *domain.TinkoffTransaction) error {
	var event domain.Event
	if err := s.db.WithContext(ctx).Preload("Theme").First(&event, paymentTxn.EventID).Error; err != nil {
		return err
	}
	var organizer domain.User
	if err := s.db.WithContext(ctx).First(&organizer, event.OrganizerID).Error; err != nil {
		return err
	}

	share := paymentTxn.Price
	if event.Theme != nil {
		share = event.Theme.OrganizerShare()
	}
	if share <= 0 {
		return nil
	}

	transfer, err := s.getOrCreateTransfer(ctx, paymentTxn, &event, organizer.ID, share)
	if err != nil {
		return err
	}
	if transfer.IsFinal() {
		return nil
	}

	if !organizer.HasPayoutCard() {
		return ErrOrganizerNotPayable
	}

	resp, err := s.gateway.PayoutInit(ctx, PayoutRequest{
		Amount:  share * minorUnitsPerCoin,
		OrderID: transfer.UUID.String(),
		CardID:  organizer.CardID,
		DealID:  transfer.DealID,
	})
	if err != nil {
		metrics.TransfersTotal.WithLabelValues(string(domain.TransactionFailed)).Inc()
		return err
	}
	if err := s.gateway.Payout(ctx, resp.PaymentID); err != nil {
		metrics.TransfersTotal.WithLabelValues(string(domain.TransactionFailed)).Inc()
		return err
	}

	if err := s.db.WithContext(ctx).Model(transfer).Updates(map[string]any{
		"status":     domain.TransactionSuccess,
		"payment_id": resp.PaymentID,
	}).Error; err != nil {
		return err
	}

	metrics.TransfersTotal.WithLabelValues(string(domain.TransactionSuccess)).Inc()
	s.bus.Publish(ctx, events.TransferCompleted{
		EventID:     event.ID,
		OrganizerID: organizer.ID,
		Amount:      share,
	})
	return nil
}

func (s *Service) getOrCreateTransfer(ctx context.Context, paymentTxn *domain.TinkoffTransaction, event *domain.Event, organizerID, share int64) (*domain.TinkoffTransaction, error) {
	var transfer domain.TinkoffTransaction
	err := s.db.WithContext(ctx).
		Where("payment_uuid = ? AND transaction_type = ?", paymentTxn.UUID, domain.TransactionTransfer).
		First(&transfer).Error
	if err == nil {
		return &transfer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	paymentUUID := paymentTxn.UUID
	transfer = domain.TinkoffTransaction{
		UUID:            uuid.New(),
		UserID:          organizerID,
		EventID:         event.ID,
		ProductType:     paymentTxn.ProductType,
		TransactionType: domain.TransactionTransfer,
		Status:          domain.TransactionPending,
		Price:           share,
		DealID:          paymentTxn.DealID,
		PaymentUUID:     &paymentUUID,
	}
	if err := s.db.WithContext(ctx).Create(&transfer).Error; err != nil {
		if isUniqueViolation(err) {
			err = s.db.WithContext(ctx).
				Where("payment_uuid = ? AND transaction_type = ?", paymentTxn.UUID, domain.TransactionTransfer).
				First(&transfer).Error
			if err != nil {
				return nil, err
			}
			return &transfer, nil
		}
		return nil, err
	}
	return &transfer, nil
}

// RefundParticipant reverses a participant's payment for an event:
// coin payments go back to the wallet, gateway payments are cancelled
// at the gateway. Idempotent — an already cancelled leg refunds zero.
func (s *Service) RefundParticipant(ctx context.Context, eventID, userID int64, payedFallback int64) (int64, error) {
	var txn domain.TinkoffTransaction
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND transaction_type = ? AND product_type = ? AND status = ?",
			eventID, userID, domain.TransactionPayment, domain.ProductParticipance, domain.TransactionSuccess).
		Order("created_at desc").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if payedFallback > 0 {
				if _, err := s.wallets.Refund(ctx, userID, payedFallback, refundReason(eventID)); err != nil {
					return 0, err
				}
				metrics.RefundsTotal.Inc()
				return payedFallback, nil
			}
			return 0, nil
		}
		return 0, err
	}

	if err := s.refundTransaction(ctx, &txn); err != nil {
		return 0, err
	}
	return txn.Price, nil
}

// RefundEventPayments refunds every settled inbound leg of an event,
// used when a published event is unpublished, cancelled or deleted
// before it starts. includeOrganizer extends the sweep to the
// organization fee.
func (s *Service) RefundEventPayments(ctx context.Context, event *domain.Event, includeOrganizer bool) error {
	products := []domain.ProductType{domain.ProductParticipance}
	if includeOrganizer {
		products = append(products, domain.ProductOrganization)
	}

	var txns []domain.TinkoffTransaction
	if err := s.db.WithContext(ctx).
		Where("event_id = ? AND transaction_type = ? AND status = ? AND product_type IN ?",
			event.ID, domain.TransactionPayment, domain.TransactionSuccess, products).
		Find(&txns).Error; err != nil {
		return err
	}

	for i := range txns {
		if err := s.refundTransaction(ctx, &txns[i]); err != nil {
			s.log.Error("refund failed",
				zap.String("uuid", txns[i].UUID.String()),
				zap.Int64("event_id", event.ID),
				zap.Error(err))
			return err
		}
	}

	if err := s.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("event_id = ? AND payed > 0", event.ID).
		Update("payed", 0).Error; err != nil {
		return err
	}

	if includeOrganizer && event.PaidByOrganizer {
		if err := s.db.WithContext(ctx).Model(&domain.Event{}).
			Where("id = ?", event.ID).
			Update("paid_by_organizer", false).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refundTransaction(ctx context.Context, txn *domain.TinkoffTransaction) error {
	if txn.PaymentID == "" {
		// Paid in coins: reverse through the ledger.
		if _, err := s.wallets.Refund(ctx, txn.UserID, txn.Price, refundReason(txn.EventID)); err != nil {
			return err
		}
	} else {
		if err := s.gateway.Cancel(ctx, txn.PaymentID, txn.Price*minorUnitsPerCoin); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Model(txn).Update("status", domain.TransactionCanceled).Error; err != nil {
		return err
	}
	metrics.RefundsTotal.Inc()
	s.bus.Publish(ctx, events.CoinsRefunded{
		EventID: txn.EventID,
		UserID:  txn.UserID,
		Amount:  txn.Price,
	})
	return nil
}

// GetByUUID returns a transaction for status polling.
func (s *Service) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.TinkoffTransaction, error) {
	var txn domain.TinkoffTransaction
	if err := s.db.WithContext(ctx).Where("uuid = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *Service) passwordForTerminal(terminalKey string) (string, error) {
	switch terminalKey {
	case s.cfg.TerminalKey:
		return s.cfg.Password, nil
	case s.cfg.E2CTerminalKey:
		return s.cfg.E2CPassword, nil
	default:
		return "", ErrUnknownTerminal
	}
}

func (s *Service) markFailed(ctx context.Context, txn *domain.TinkoffTransaction, reason string) {
	if err := s.db.WithContext(ctx).Model(txn).Updates(map[string]any{
		"status":         domain.TransactionFailed,
		"failure_reason": reason,
	}).Error; err != nil {
		s.log.Error("failed to mark transaction failed",
			zap.String("uuid", txn.UUID.String()),
			zap.Error(err))
	}
}

func ensureParticipant(tx *gorm.DB, eventID, userID int64) error {
	var existing domain.Participant
	err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	p := domain.Participant{
		EventID: eventID,
		UserID:  userID,
		QR:      uuid.NewString(),
	}
	if err := tx.Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func refundReason(eventID int64) string {
	return fmt.Sprintf("refund for event %d", eventID)
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
