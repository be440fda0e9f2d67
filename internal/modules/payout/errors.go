package payout

import "errors"

var (
	ErrInvalidCardNumber = errors.New("card number failed validation")
	ErrInvalidExpDate    = errors.New("expiry date must be MMYY")
)
