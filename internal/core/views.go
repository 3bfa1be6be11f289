package core

import (
	"fmt"

	"HedgeLedger/internal/analytics"
	"HedgeLedger/internal/hedge"
	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// Read-side accessors. Everything returns copies taken under the engine
// mutex so callers never observe a half-applied operation.

// BalanceView is one wallet's position in one asset, with the derived
// withdrawable amount and, when an oracle route exists, its reference
// currency valuation.
type BalanceView struct {
	Asset        ledger.AssetID
	Symbol       string
	Deposited    int64
	Withdrawn    int64
	LockedInUse  int64
	Withdrawable int64

	// RefValue/RefCurrency are zero when no oracle route exists.
	RefValue    int64
	RefCurrency ledger.AssetID
}

// Balances returns the caller's per-asset positions in first-deposit
// order.
func (e *Engine) Balances(wallet uuid.UUID) []BalanceView {
	e.mu.Lock()
	defer e.mu.Unlock()

	assets := e.book.WalletAssets(wallet)
	out := make([]BalanceView, 0, len(assets))
	for _, asset := range assets {
		out = append(out, e.balanceView(asset, wallet))
	}
	return out
}

// Balance returns the caller's position in a single asset.
func (e *Engine) Balance(wallet uuid.UUID, asset ledger.AssetID) (BalanceView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.assets.Symbol(asset); !ok {
		return BalanceView{}, fmt.Errorf("%w: unknown asset %d", ErrInvalidParameters, asset)
	}
	return e.balanceView(asset, wallet), nil
}

func (e *Engine) balanceView(asset ledger.AssetID, wallet uuid.UUID) BalanceView {
	bal := e.book.Get(asset, wallet)
	symbol, _ := e.assets.Symbol(asset)
	v := BalanceView{
		Asset:        asset,
		Symbol:       symbol,
		Deposited:    bal.Deposited,
		Withdrawn:    bal.Withdrawn,
		LockedInUse:  bal.LockedInUse,
		Withdrawable: bal.Withdrawable(),
	}
	if quote, err := e.oracle.Quote(asset, v.Withdrawable); err == nil {
		v.RefValue = quote.Value
		v.RefCurrency = quote.Currency
	}
	return v
}

// HedgeView is a point-in-time copy of one hedge record, including its
// attached top-up history.
type HedgeView struct {
	Hedge   hedge.Hedge
	Symbol  string
	TopUps  []hedge.TopUpRequest
	Deleted bool
}

// GetHedge returns a copy of the hedge record. For a tombstoned id the
// view carries only the Deleted flag; a never-created id is an error.
func (e *Engine) GetHedge(id uint64) (HedgeView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.registry.Get(id)
	if !ok {
		if e.registry.WasDeleted(id) {
			return HedgeView{Hedge: hedge.Hedge{ID: id}, Deleted: true}, nil
		}
		return HedgeView{}, fmt.Errorf("%w: hedge %d does not exist", ErrInvalidState, id)
	}

	symbol, _ := e.assets.Symbol(h.Asset)
	view := HedgeView{Hedge: *h, Symbol: symbol}
	view.Hedge.TopUps = append([]uint64(nil), h.TopUps...)
	for _, tid := range h.TopUps {
		if req, ok := e.registry.GetTopUp(tid); ok {
			view.TopUps = append(view.TopUps, *req)
		}
	}
	return view, nil
}

// HedgeCount returns the number of live hedges.
func (e *Engine) HedgeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Count()
}

// === Index views (hedge id lists, creation order) ===

func (e *Engine) HedgesCreatedBy(wallet uuid.UUID) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyIDs(e.analytics.CreatedBy(wallet))
}

func (e *Engine) HedgesTakenBy(wallet uuid.UUID) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyIDs(e.analytics.TakenBy(wallet))
}

func (e *Engine) HedgesByAsset(asset ledger.AssetID) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyIDs(e.analytics.ByToken(asset))
}

func (e *Engine) SettledByAsset(asset ledger.AssetID) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyIDs(e.analytics.SettledByToken(asset))
}

func (e *Engine) AllCreated() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyIDs(e.analytics.AllCreated())
}

func (e *Engine) AllTaken() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyIDs(e.analytics.AllTaken())
}

func (e *Engine) AllSettled() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyIDs(e.analytics.AllSettled())
}

func copyIDs(ids []uint64) []uint64 {
	return append([]uint64(nil), ids...)
}

// === Analytics views ===

// PnL returns the wallet's cumulative realized profits and losses in a
// reference currency.
func (e *Engine) PnL(currency ledger.AssetID, wallet uuid.UUID) analytics.ProfitLoss {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analytics.PnL(currency, wallet)
}

// AssetActivity returns the per-asset volume and fee aggregates.
func (e *Engine) AssetActivity(asset ledger.AssetID) analytics.AssetStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analytics.AssetActivity(asset)
}

// Counters returns the global instrument counters.
func (e *Engine) Counters() analytics.Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analytics.Snapshot()
}

// ProtocolTotals returns the system-wide deposit/withdraw totals for an
// asset.
func (e *Engine) ProtocolTotals(asset ledger.AssetID) ledger.ProtocolTotals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Totals(asset)
}

// ResolveAsset maps a symbol to its asset id.
func (e *Engine) ResolveAsset(symbol string) (ledger.AssetID, bool) {
	return e.assets.ID(symbol)
}
