package engine

import "errors"

var (
	ErrDepositFailed       = errors.New("deposit failed")
	ErrWithdrawalFailed    = errors.New("withdrawal failed")
	ErrNoPositionsToCancel = errors.New("no positions to cancel")
	ErrInsufficientBalance = errors.New("insufficient claim balance")
	ErrNothingToRedeem     = errors.New("nothing to redeem")
	ErrPoolNotInitialized  = errors.New("pool not initialized")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidTick         = errors.New("tick out of range")
	ErrSwapFailed          = errors.New("swap failed")
	ErrInvariantViolation  = errors.New("invariant violation")
)
