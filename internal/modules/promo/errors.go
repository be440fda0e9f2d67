package promo

import "errors"

var (
	ErrCodeNotFound    = errors.New("promo code not found")
	ErrCodeExpired     = errors.New("promo code expired or disabled")
	ErrAlreadyRedeemed = errors.New("promo code already redeemed")
)
