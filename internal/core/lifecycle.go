package core

import (
	"context"
	"fmt"
	"time"

	"HedgeLedger/internal/event"
	"HedgeLedger/internal/fee"
	"HedgeLedger/internal/hedge"
	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// CreateParams are the inputs for writing a new hedge. StrikePrice is
// per underlying unit (ignored for swaps); Cost is in the reference
// currency of the creation quote.
type CreateParams struct {
	Instrument  hedge.Instrument
	Asset       ledger.AssetID
	Amount      int64
	Cost        int64
	StrikePrice int64
	Expiry      time.Time
}

// CreateHedge writes a new hedge, locking Amount of the caller's asset
// as collateral. Options must be out-of-the-money for the taker at
// inception; swaps must be fully collateralized by the cost.
func (e *Engine) CreateHedge(ctx context.Context, owner uuid.UUID, p CreateParams) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	if !p.Instrument.Valid() {
		return 0, e.reject("create", fmt.Errorf("%w: bad instrument tag %d", ErrInvalidParameters, p.Instrument))
	}
	if p.Amount <= 0 || p.Cost <= 0 {
		return 0, e.reject("create", fmt.Errorf("%w: amount=%d cost=%d", ErrInvalidParameters, p.Amount, p.Cost))
	}
	if !p.Expiry.After(start) {
		return 0, e.reject("create", fmt.Errorf("%w: expiry %s is not in the future", ErrInvalidParameters, p.Expiry))
	}
	if p.Instrument != hedge.InstrumentSwap && p.StrikePrice <= 0 {
		return 0, e.reject("create", fmt.Errorf("%w: strike price %d", ErrInvalidParameters, p.StrikePrice))
	}
	symbol, ok := e.assets.Symbol(p.Asset)
	if !ok {
		return 0, e.reject("create", fmt.Errorf("%w: unknown asset %d", ErrInvalidParameters, p.Asset))
	}

	if err := e.book.ValidateSufficientWithdrawable(p.Asset, owner, p.Amount); err != nil {
		return 0, e.reject("create", err)
	}

	quote, err := e.oracle.Quote(p.Asset, p.Amount)
	if err != nil {
		return 0, e.reject("create", err)
	}
	createValue := quote.Value

	strikeValue := p.StrikePrice * p.Amount
	switch p.Instrument {
	case hedge.InstrumentCall:
		// The taker must start out-of-the-money: writing an in-the-money
		// call would be riskless arbitrage against the writer.
		if strikeValue <= createValue {
			return 0, e.reject("create", fmt.Errorf(
				"%w: call strike value %d must exceed creation value %d",
				ErrInvalidParameters, strikeValue, createValue))
		}
	case hedge.InstrumentPut:
		if strikeValue >= createValue {
			return 0, e.reject("create", fmt.Errorf(
				"%w: put strike value %d must be below creation value %d",
				ErrInvalidParameters, strikeValue, createValue))
		}
	case hedge.InstrumentSwap:
		strikeValue = 0
		if p.Cost < createValue {
			return 0, e.reject("create", fmt.Errorf(
				"%w: swap cost %d must cover creation value %d",
				ErrInvalidParameters, p.Cost, createValue))
		}
	}

	// All checks passed: lock the writer's collateral and record.
	e.book.Credit(p.Asset, owner, ledger.FieldLockedInUse, p.Amount)

	h := &hedge.Hedge{
		Owner:       owner,
		Asset:       p.Asset,
		Currency:    quote.Currency,
		Instrument:  p.Instrument,
		Status:      hedge.StatusCreated,
		Amount:      p.Amount,
		Cost:        p.Cost,
		StrikeValue: strikeValue,
		CreateValue: createValue,
		CreatedAt:   start,
		ExpiresAt:   p.Expiry,
	}
	id := e.registry.Insert(h)
	e.analytics.RecordCreated(h)

	if e.metrics != nil {
		e.metrics.HedgesOpen.Inc()
	}
	e.emit(event.TypeHedgeCreated, &owner, &id, symbol, map[string]int64{
		"amount":       p.Amount,
		"cost":         p.Cost,
		"strike_value": strikeValue,
		"create_value": createValue,
	})
	e.applied("create", start)
	e.log.Info().
		Uint64("hedge_id", id).
		Str("instrument", p.Instrument.String()).
		Str("asset", symbol).
		Int64("amount", p.Amount).
		Msg("hedge created")
	return id, nil
}

// TakeHedge accepts a created hedge. For options the cost is paid to the
// writer immediately as premium; for swaps it is locked as the taker's
// collateral instead, released or forfeited at settlement.
func (e *Engine) TakeHedge(ctx context.Context, taker uuid.UUID, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, ok := e.registry.Get(id)
	if !ok {
		return e.reject("take", e.hedgeLookupError(id))
	}
	if h.Status != hedge.StatusCreated {
		return e.reject("take", fmt.Errorf("%w: hedge %d is %s, not created", ErrInvalidState, id, h.Status))
	}
	if !start.Before(h.ExpiresAt) {
		return e.reject("take", fmt.Errorf("%w: hedge %d expired at %s", ErrInvalidState, id, h.ExpiresAt))
	}
	if taker == h.Owner {
		return e.reject("take", fmt.Errorf("%w: cannot take own hedge", ErrUnauthorized))
	}

	quote, err := e.oracle.Quote(h.Asset, h.Amount)
	if err != nil {
		return e.reject("take", err)
	}
	startValue := quote.Value
	if h.Instrument == hedge.InstrumentSwap {
		// Swap collateral includes the cost, so the start valuation does too.
		startValue += h.Cost
	}
	if startValue <= 0 {
		return e.reject("take", fmt.Errorf("%w: zero start valuation for hedge %d", ErrOracle, id))
	}

	if err := e.book.ValidateSufficientWithdrawable(h.Currency, taker, h.Cost); err != nil {
		return e.reject("take", err)
	}

	if h.Instrument == hedge.InstrumentSwap {
		e.book.Credit(h.Currency, taker, ledger.FieldLockedInUse, h.Cost)
	} else {
		// Premium moves immediately, no fee: taker's withdrawn rises,
		// writer's deposited rises.
		e.book.Credit(h.Currency, taker, ledger.FieldWithdrawn, h.Cost)
		e.book.Credit(h.Currency, h.Owner, ledger.FieldDeposited, h.Cost)
	}

	h.Taker = taker
	h.TakenAt = start
	h.StartValue = startValue
	h.Status = hedge.StatusTaken
	e.analytics.RecordTaken(h)

	symbol, _ := e.assets.Symbol(h.Asset)
	e.emit(event.TypeHedgeTaken, &taker, &id, symbol, map[string]int64{
		"cost":        h.Cost,
		"start_value": startValue,
	})
	e.applied("take", start)
	return nil
}

// DeleteHedge clears a hedge. Created hedges may be deleted by their
// owner at any time with a full, fee-free release. Taken options may be
// deleted after expiry by the owner (fee-free) or by a miner, who earns
// half of the protocol fee charged on the locked amount. Taken swaps are
// never deletable; they must settle.
func (e *Engine) DeleteHedge(ctx context.Context, caller uuid.UUID, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, ok := e.registry.Get(id)
	if !ok {
		return e.reject("delete", e.hedgeLookupError(id))
	}

	switch h.Status {
	case hedge.StatusCreated:
		if caller != h.Owner {
			return e.reject("delete", fmt.Errorf("%w: only the owner may delete an untaken hedge", ErrUnauthorized))
		}
		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		return e.finishDelete(h, caller, "untaken", start)

	case hedge.StatusTaken:
		if h.Instrument == hedge.InstrumentSwap {
			return e.reject("delete", fmt.Errorf("%w: taken swaps must settle, not delete", ErrInvalidState))
		}
		if start.Before(h.ExpiresAt) {
			return e.reject("delete", fmt.Errorf("%w: hedge %d has not expired", ErrInvalidState, id))
		}
		if caller != h.Owner && !e.isMiner(caller) {
			return e.reject("delete", fmt.Errorf("%w: only the owner or a miner may delete after expiry", ErrUnauthorized))
		}

		if caller != h.Owner {
			return e.deleteExpiredByMiner(h, caller, start)
		}
		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		return e.finishDelete(h, caller, "expired", start)

	default:
		return e.reject("delete", fmt.Errorf("%w: hedge %d is %s", ErrInvalidState, id, h.Status))
	}
}

// deleteExpiredByMiner releases an expired position, charging the
// housekeeping fee on the locked amount: half to the deleting miner,
// half to the protocol, remainder back to the owner.
func (e *Engine) deleteExpiredByMiner(h *hedge.Hedge, miner uuid.UUID, start time.Time) error {
	feeAmt, err := e.fees.Fee(h.Amount)
	if err != nil {
		return e.reject("delete", err)
	}
	protocolFee, minerFee := fee.SplitHalf(feeAmt)

	e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
	e.book.Credit(h.Asset, h.Owner, ledger.FieldWithdrawn, feeAmt)
	if minerFee > 0 {
		e.book.Credit(h.Asset, miner, ledger.FieldDeposited, minerFee)
	}
	e.analytics.AddFees(h.Asset, protocolFee, minerFee)

	if e.metrics != nil {
		symbol, _ := e.assets.Symbol(h.Asset)
		e.metrics.FeesCollected.WithLabelValues(symbol).Add(float64(feeAmt))
	}
	return e.finishDelete(h, miner, "expired_by_miner", start)
}

// finishDelete books the premium outcome, tombstones the record and
// emits the audit event.
func (e *Engine) finishDelete(h *hedge.Hedge, caller uuid.UUID, reason string, start time.Time) error {
	// An expired, unexercised position means the writer keeps the
	// premium paid at take time.
	if h.Status == hedge.StatusTaken {
		e.analytics.RecordProfit(h.Currency, h.Owner, h.Cost)
		e.analytics.RecordLoss(h.Currency, h.Taker, h.Cost)
	}

	id := h.ID
	symbol, _ := e.assets.Symbol(h.Asset)
	e.analytics.RecordDeleted(h)
	if err := e.registry.Delete(id); err != nil {
		panic(fmt.Sprintf("FATAL: delete of live hedge %d failed: %v", id, err))
	}

	if e.metrics != nil {
		e.metrics.HedgesOpen.Dec()
	}
	e.emit(event.TypeHedgeDeleted, &caller, &id, symbol, map[string]string{"reason": reason})
	e.applied("delete", start)
	e.log.Info().Uint64("hedge_id", id).Str("reason", reason).Msg("hedge deleted")
	return nil
}

// RequestZap flags mutual-consent expedited settlement on a taken swap.
// Once both parties have flagged, the swap may settle before expiry.
func (e *Engine) RequestZap(ctx context.Context, caller uuid.UUID, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.registry.Get(id)
	if !ok {
		return e.reject("zap", e.hedgeLookupError(id))
	}
	if h.Instrument != hedge.InstrumentSwap {
		return e.reject("zap", fmt.Errorf("%w: zap applies to swaps only", ErrInvalidState))
	}
	if h.Status != hedge.StatusTaken {
		return e.reject("zap", fmt.Errorf("%w: hedge %d is %s, not taken", ErrInvalidState, id, h.Status))
	}

	switch caller {
	case h.Owner:
		h.ZapByOwner = true
	case h.Taker:
		h.ZapByTaker = true
	default:
		return e.reject("zap", fmt.Errorf("%w: caller is neither owner nor taker", ErrUnauthorized))
	}

	symbol, _ := e.assets.Symbol(h.Asset)
	e.emit(event.TypeZapRequested, &caller, &id, symbol, nil)
	return nil
}
