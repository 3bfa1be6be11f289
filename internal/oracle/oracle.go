package oracle

import (
	"errors"

	"HedgeLedger/internal/ledger"
)

var (
	// ErrNoMarketPair means no pool or route exists from the asset to any
	// of the fixed reference currencies.
	ErrNoMarketPair = errors.New("no market pair for asset")

	// ErrStaleQuote means a route exists but has no observation inside
	// the averaging window.
	ErrStaleQuote = errors.New("quote is stale")
)

// Quote is a valuation in one of the reference currencies.
type Quote struct {
	Value    int64
	Currency ledger.AssetID
}

// PriceOracle values an asset amount in a reference currency. The routing
// fallback across the reference currencies (in the fixed priority order)
// happens inside the implementation; callers see a single quote or an
// error.
type PriceOracle interface {
	// Quote returns the value of `amount` units of `asset`.
	Quote(asset ledger.AssetID, amount int64) (Quote, error)

	// UnitPrice returns the value of exactly one unit of `asset`.
	UnitPrice(asset ledger.AssetID) (Quote, error)
}
