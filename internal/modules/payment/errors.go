package payment

import "errors"

var (
	// ErrGatewayUnavailable covers transport failures and non-200
	// responses from the gateway.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected means the gateway answered Success=false.
	ErrGatewayRejected = errors.New("payment gateway rejected request")

	ErrInvalidToken              = errors.New("invalid webhook token")
	ErrUnknownTerminal           = errors.New("unknown terminal key")
	ErrUnknownOrStaleTransaction = errors.New("unknown or stale transaction")
	ErrOrganizerNotPayable       = errors.New("organizer has no payout card")
	ErrAmountMismatch            = errors.New("webhook amount mismatch")
)
