package ledger

import "errors"

// Ledger integrity errors. All of them are fatal to the enclosing locked
// call; the caller must restructure the call sequence rather than retry.
var (
	ErrNotLocked      = errors.New("no active lock context")
	ErrPayReentrance  = errors.New("payment already pending for another frame")
	ErrUnsettledDebt  = errors.New("lock context has unsettled debt")
	ErrDeltaOverflow  = errors.New("frame delta outside signed 128-bit range")
	ErrAmountOverflow = errors.New("amount outside unsigned 128-bit range")

	ErrSavedBalanceOverflow     = errors.New("saved balance overflows unsigned 128-bit range")
	ErrInsufficientSavedBalance = errors.New("insufficient saved balance")

	ErrInsufficientBalance = errors.New("insufficient token balance")
)
