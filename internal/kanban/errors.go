package kanban

import "errors"

var (
	ErrNotLoaded            = errors.New("board not loaded")
	ErrNotFound             = errors.New("transaction not on board")
	ErrInvalidStatus        = errors.New("invalid target status")
	ErrInvalidInstallments  = errors.New("installment count must be at least 1")
	ErrDuplicateInstallment = errors.New("installment of this plan already scheduled in the month")

	// ErrOperationFailed wraps every persistence failure surfaced to callers.
	ErrOperationFailed = errors.New("could not complete operation")
)
