package services

import "errors"

// Ledger-boundary errors are hard failures: no partial mutation happened and
// the caller must surface "could not award points". AlreadyClaimed is the
// exception — it means the desired end state already holds, so callers
// present it as success.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidAmount      = errors.New("reward amount must be a positive integer")
	ErrAlreadyClaimed     = errors.New("offer already claimed")
	ErrNoClickFound       = errors.New("no unclaimed click found for this offer")
	ErrDailyLimitReached  = errors.New("daily ad watch limit reached")
	ErrInsufficientPoints = errors.New("insufficient points for withdrawal")
	ErrBelowMinimum       = errors.New("withdrawal amount below minimum")
	ErrAlreadyProcessed   = errors.New("withdrawal request already processed")
)
