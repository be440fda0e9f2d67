package payment

import (
	"context"
	"encoding/json"
)

// InitRequest starts the inbound payment leg. Amount is in minor
// units; OrderID is the transaction UUID and doubles as the gateway
// idempotency key.
type InitRequest struct {
	Amount      int64
	OrderID     string
	CustomerKey string
	Description string
}

type InitResponse struct {
	PaymentID  string
	PaymentURL string
}

// PayoutRequest starts the outbound card-to-card leg.
type PayoutRequest struct {
	Amount  int64
	OrderID string
	CardID  string
	DealID  string
}

type PayoutResponse struct {
	PaymentID string
}

// GatewayClient is the external payment provider. Injected so tests
// substitute a fake transport.
type GatewayClient interface {
	// Init creates a payment session (POST /v2/Init).
	Init(ctx context.Context, req InitRequest) (*InitResponse, error)
	// Cancel refunds or voids a payment (POST /v2/Cancel).
	Cancel(ctx context.Context, paymentID string, amount int64) error
	// PayoutInit registers a card-to-card transfer (POST /e2c/v2/Init).
	PayoutInit(ctx context.Context, req PayoutRequest) (*PayoutResponse, error)
	// Payout executes a registered transfer (POST /e2c/v2/Payment).
	Payout(ctx context.Context, paymentID string) error
	// AddCard binds a payout card and returns the gateway card id.
	AddCard(ctx context.Context, customerKey, pan, expDate string) (string, error)
}

// WebhookPayload is the gateway's notification callback body. Amount is
// in minor units; PaymentId arrives as a JSON number.
type WebhookPayload struct {
	TerminalKey string      `json:"TerminalKey"`
	Amount      int64       `json:"Amount"`
	OrderID     string      `json:"OrderId"`
	Success     bool        `json:"Success"`
	Status      string      `json:"Status"`
	PaymentID   json.Number `json:"PaymentId"`
	ErrorCode   string      `json:"ErrorCode"`
	CardID      string      `json:"CardId,omitempty"`
	Pan         string      `json:"Pan,omitempty"`
	ExpDate     string      `json:"ExpDate,omitempty"`
	Token       string      `json:"Token"`
}

// Gateway webhook statuses that matter to the orchestrator.
const (
	StatusAuthorized = "AUTHORIZED"
	StatusConfirmed  = "CONFIRMED"
	StatusRejected   = "REJECTED"
)
