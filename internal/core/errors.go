package core

import "errors"

// Engine error taxonomy. Balance shortfalls reuse
// ledger.ErrInsufficientBalance, fee underflows fee.ErrAmountTooSmall and
// missing oracle routes oracle.ErrNoMarketPair; everything below is
// raised by the engine itself. Every failure aborts the whole operation
// with no state mutation.
var (
	// ErrInvalidParameters covers zero/negative amounts, past expiries
	// and bad instrument tags.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrUnauthorized means the caller may not perform the attempted
	// transition.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState means the hedge or top-up request is not in the
	// status the operation requires.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientCollateral means a party lacks withdrawable funds
	// to back a negotiated top-up.
	ErrInsufficientCollateral = errors.New("insufficient collateral")

	// ErrOracle means a valuation computed but failed a sanity check
	// (for example a zero start valuation at take time).
	ErrOracle = errors.New("oracle error")
)
