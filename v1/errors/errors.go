package errors

import "errors"

var (
	ErrTimeout           = errors.New("timeout")
	ErrCancelled         = errors.New("cancelled")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("self transfer")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrConnectionClosed  = errors.New("connection closed")
)
