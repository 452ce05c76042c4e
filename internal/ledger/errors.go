package ledger

import "errors"

var (
	ErrUnauthorized    = errors.New("ledger: caller not authorized")
	ErrAlreadyExists   = errors.New("ledger: event already exists")
	ErrNotFound        = errors.New("ledger: event not found")
	ErrInvalidEvent    = errors.New("ledger: invalid event definition")
	ErrInvalidState    = errors.New("ledger: action not allowed in current state")
	ErrInvalidAmount   = errors.New("ledger: invalid stake amount")
	ErrInvalidOutcome  = errors.New("ledger: invalid outcome")
	ErrAlreadyResolved = errors.New("ledger: event already resolved")
	ErrNotResolved     = errors.New("ledger: event not resolved")
	ErrTooEarly        = errors.New("ledger: event has not locked yet")
	ErrNoPosition      = errors.New("ledger: no claimable position")
	ErrLost            = errors.New("ledger: position lost")
)
