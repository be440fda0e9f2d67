package subscription

import "errors"

var (
	ErrAlreadySubscribed    = errors.New("an active subscription already exists")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrUnknownBillingPeriod = errors.New("unknown billing period")
)
