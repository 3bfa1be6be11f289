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

// Outcome classifies how a settlement resolved.
type Outcome string

const (
	OutcomeTakerWins Outcome = "taker_wins"
	OutcomeOwnerWins Outcome = "owner_wins"
	OutcomeExpired   Outcome = "expired"
)

// SettlementResult reports the computed payoff and fee distribution.
type SettlementResult struct {
	HedgeID    uint64
	Instrument hedge.Instrument
	Outcome    Outcome

	EndValue int64 // settlement-time valuation, reference currency

	// Payoff is in the reference currency; TokensDue is its conversion
	// to underlying units when the payout happens in the asset.
	Payoff    int64
	TokensDue int64

	Fee         int64
	ProtocolFee int64
	MinerFee    int64
	FeeAsset    ledger.AssetID

	// Deleted is set when an expired, unexercised option was cleared
	// instead of paid out.
	Deleted bool
}

// Settle resolves a taken hedge against the current oracle valuation.
//
// Calls and puts may be exercised before expiry by the taker only; at or
// after expiry an unexercised position is deleted instead of settled
// (the taker forfeits — the premium already moved at take time). Swaps
// settle once both parties have flagged zap or the expiry has passed.
//
// Every payoff is floor-divided and capped at the losing side's locked
// collateral: the engine never pays out more than is locked.
func (e *Engine) Settle(ctx context.Context, caller uuid.UUID, id uint64) (*SettlementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, ok := e.registry.Get(id)
	if !ok {
		return nil, e.reject("settle", e.hedgeLookupError(id))
	}
	if h.Status != hedge.StatusTaken {
		return nil, e.reject("settle", fmt.Errorf("%w: hedge %d is %s, not taken", ErrInvalidState, id, h.Status))
	}

	if h.Instrument == hedge.InstrumentSwap {
		return e.settleSwap(h, caller, start)
	}
	return e.settleOption(h, caller, start)
}

func (e *Engine) settleOption(h *hedge.Hedge, caller uuid.UUID, start time.Time) (*SettlementResult, error) {
	isMiner := e.isMiner(caller)
	if caller != h.Taker && !isMiner {
		return nil, e.reject("settle", fmt.Errorf("%w: only the taker or a miner may settle a %s", ErrUnauthorized, h.Instrument))
	}

	if !start.Before(h.ExpiresAt) {
		// Expired unexercised: deletion, not a payoff computation.
		return e.settleExpiredOption(h, caller, isMiner, start)
	}
	if caller != h.Taker {
		return nil, e.reject("settle", fmt.Errorf("%w: only the taker may exercise before expiry", ErrUnauthorized))
	}

	quote, err := e.oracle.Quote(h.Asset, h.Amount)
	if err != nil {
		return nil, e.reject("settle", err)
	}
	underlyingValue := quote.Value

	var payoff int64
	switch h.Instrument {
	case hedge.InstrumentCall:
		payoff = underlyingValue - h.StrikeValue - h.Cost
	case hedge.InstrumentPut:
		payoff = h.StrikeValue - underlyingValue - h.Cost
	}

	result := &SettlementResult{
		HedgeID:    h.ID,
		Instrument: h.Instrument,
		EndValue:   underlyingValue,
		FeeAsset:   h.Asset,
	}

	if payoff <= 0 {
		// Out-of-the-money: the writer keeps premium and collateral.
		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		e.analytics.RecordProfit(h.Currency, h.Owner, h.Cost)
		e.analytics.RecordLoss(h.Currency, h.Taker, h.Cost)
		result.Outcome = OutcomeOwnerWins
		return result, e.finalizeSettlement(h, result, caller, isMiner, start)
	}

	unit, err := e.oracle.UnitPrice(h.Asset)
	if err != nil {
		return nil, e.reject("settle", err)
	}
	if unit.Value <= 0 {
		return nil, e.reject("settle", fmt.Errorf("%w: zero unit price for asset %d", ErrOracle, h.Asset))
	}

	tokensDue := payoff / unit.Value
	if tokensDue > h.Amount {
		tokensDue = h.Amount
	}

	result.Outcome = OutcomeTakerWins
	result.Payoff = payoff
	result.TokensDue = tokensDue

	if tokensDue == 0 {
		// Payoff rounds below one underlying unit; release and close.
		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		return result, e.finalizeSettlement(h, result, caller, isMiner, start)
	}

	feeAmt, err := e.fees.Fee(tokensDue)
	if err != nil {
		return nil, e.reject("settle", err)
	}
	protocolFee, minerFee := e.splitFee(feeAmt, isMiner)

	// Mutations only after every fallible computation has succeeded.
	e.book.Credit(h.Asset, h.Taker, ledger.FieldDeposited, tokensDue-feeAmt)
	e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
	e.book.Credit(h.Asset, h.Owner, ledger.FieldWithdrawn, tokensDue)
	if minerFee > 0 {
		e.book.Credit(h.Asset, caller, ledger.FieldDeposited, minerFee)
	}
	e.analytics.AddFees(h.Asset, protocolFee, minerFee)
	e.analytics.RecordProfit(h.Currency, h.Taker, payoff)
	e.analytics.RecordLoss(h.Currency, h.Owner, payoff)

	result.Fee = feeAmt
	result.ProtocolFee = protocolFee
	result.MinerFee = minerFee
	return result, e.finalizeSettlement(h, result, caller, isMiner, start)
}

// settleExpiredOption clears an expired, unexercised call/put. A miner
// performing the housekeeping earns half of the fee charged on the
// locked amount; a taker-invoked close releases everything fee-free.
func (e *Engine) settleExpiredOption(h *hedge.Hedge, caller uuid.UUID, isMiner bool, start time.Time) (*SettlementResult, error) {
	result := &SettlementResult{
		HedgeID:    h.ID,
		Instrument: h.Instrument,
		Outcome:    OutcomeExpired,
		FeeAsset:   h.Asset,
		Deleted:    true,
	}

	if caller != h.Taker && isMiner {
		feeAmt, err := e.fees.Fee(h.Amount)
		if err != nil {
			return nil, e.reject("settle", err)
		}
		protocolFee, minerFee := fee.SplitHalf(feeAmt)

		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		e.book.Credit(h.Asset, h.Owner, ledger.FieldWithdrawn, feeAmt)
		if minerFee > 0 {
			e.book.Credit(h.Asset, caller, ledger.FieldDeposited, minerFee)
		}
		e.analytics.AddFees(h.Asset, protocolFee, minerFee)
		result.Fee = feeAmt
		result.ProtocolFee = protocolFee
		result.MinerFee = minerFee
	} else {
		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
	}

	if err := e.finishDelete(h, caller, "expired_unexercised", start); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.Settlements.WithLabelValues(h.Instrument.String(), string(OutcomeExpired)).Inc()
	}
	return result, nil
}

func (e *Engine) settleSwap(h *hedge.Hedge, caller uuid.UUID, start time.Time) (*SettlementResult, error) {
	isMiner := e.isMiner(caller)
	if caller != h.Owner && caller != h.Taker && !isMiner {
		return nil, e.reject("settle", fmt.Errorf("%w: only a party or a miner may settle a swap", ErrUnauthorized))
	}

	zapped := h.ZapByOwner && h.ZapByTaker
	if !zapped && start.Before(h.ExpiresAt) {
		return nil, e.reject("settle", fmt.Errorf("%w: swap %d needs mutual zap or expiry", ErrInvalidState, h.ID))
	}

	quote, err := e.oracle.Quote(h.Asset, h.Amount)
	if err != nil {
		return nil, e.reject("settle", err)
	}
	underlyingValue := quote.Value

	result := &SettlementResult{
		HedgeID:    h.ID,
		Instrument: h.Instrument,
		EndValue:   underlyingValue,
	}

	if underlyingValue > h.StartValue {
		// Taker wins: payoff converts to underlying units, capped at the
		// writer's locked amount; the taker's locked cost is released.
		payoff := underlyingValue - h.StartValue

		unit, err := e.oracle.UnitPrice(h.Asset)
		if err != nil {
			return nil, e.reject("settle", err)
		}
		if unit.Value <= 0 {
			return nil, e.reject("settle", fmt.Errorf("%w: zero unit price for asset %d", ErrOracle, h.Asset))
		}

		tokensDue := payoff / unit.Value
		if tokensDue > h.Amount {
			tokensDue = h.Amount
		}

		result.Outcome = OutcomeTakerWins
		result.Payoff = payoff
		result.TokensDue = tokensDue
		result.FeeAsset = h.Asset

		if tokensDue > 0 {
			feeAmt, err := e.fees.Fee(tokensDue)
			if err != nil {
				return nil, e.reject("settle", err)
			}
			protocolFee, minerFee := e.splitFee(feeAmt, isMiner)

			e.book.Credit(h.Asset, h.Taker, ledger.FieldDeposited, tokensDue-feeAmt)
			e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
			e.book.Credit(h.Asset, h.Owner, ledger.FieldWithdrawn, tokensDue)
			if minerFee > 0 {
				e.book.Credit(h.Asset, caller, ledger.FieldDeposited, minerFee)
			}
			e.analytics.AddFees(h.Asset, protocolFee, minerFee)
			result.Fee = feeAmt
			result.ProtocolFee = protocolFee
			result.MinerFee = minerFee
		} else {
			e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		}
		e.book.Debit(h.Currency, h.Taker, ledger.FieldLockedInUse, h.Cost)

		e.analytics.RecordProfit(h.Currency, h.Taker, payoff)
		e.analytics.RecordLoss(h.Currency, h.Owner, payoff)
		return result, e.finalizeSettlement(h, result, caller, isMiner, start)
	}

	// Writer wins: payoff in reference currency, capped at the taker's
	// locked cost; the writer's locked asset amount is fully released.
	payoff := h.StartValue - underlyingValue
	if payoff > h.Cost {
		payoff = h.Cost
	}

	result.Outcome = OutcomeOwnerWins
	result.Payoff = payoff
	result.FeeAsset = h.Currency

	if payoff > 0 {
		feeAmt, err := e.fees.Fee(payoff)
		if err != nil {
			return nil, e.reject("settle", err)
		}
		protocolFee, minerFee := e.splitFee(feeAmt, isMiner)

		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		e.book.Debit(h.Currency, h.Taker, ledger.FieldLockedInUse, h.Cost)
		e.book.Credit(h.Currency, h.Taker, ledger.FieldWithdrawn, payoff)
		e.book.Credit(h.Currency, h.Owner, ledger.FieldDeposited, payoff-feeAmt)
		if minerFee > 0 {
			e.book.Credit(h.Currency, caller, ledger.FieldDeposited, minerFee)
		}
		e.analytics.AddFees(h.Currency, protocolFee, minerFee)
		result.Fee = feeAmt
		result.ProtocolFee = protocolFee
		result.MinerFee = minerFee
	} else {
		// Flat market: release both sides, no fee.
		e.book.Debit(h.Asset, h.Owner, ledger.FieldLockedInUse, h.Amount)
		e.book.Debit(h.Currency, h.Taker, ledger.FieldLockedInUse, h.Cost)
	}

	e.analytics.RecordProfit(h.Currency, h.Owner, payoff)
	e.analytics.RecordLoss(h.Currency, h.Taker, payoff)
	return result, e.finalizeSettlement(h, result, caller, isMiner, start)
}

// splitFee applies the 85/15 protocol/miner split, with the miner share
// folded into the protocol when the settling caller is not staked.
func (e *Engine) splitFee(feeAmt int64, callerIsMiner bool) (protocolFee, minerFee int64) {
	protocolFee, minerFee = fee.SplitProtocolMiner(feeAmt)
	if !callerIsMiner {
		protocolFee += minerFee
		minerFee = 0
	}
	return protocolFee, minerFee
}

// finalizeSettlement transitions the hedge to Settled and books the
// derived analytics.
func (e *Engine) finalizeSettlement(h *hedge.Hedge, result *SettlementResult, caller uuid.UUID, isMiner bool, start time.Time) error {
	h.Status = hedge.StatusSettled
	h.EndValue = result.EndValue
	h.SettledAt = start

	e.analytics.RecordSettled(h, caller, isMiner)

	symbol, _ := e.assets.Symbol(h.Asset)
	if e.metrics != nil {
		e.metrics.HedgesOpen.Dec()
		e.metrics.Settlements.WithLabelValues(h.Instrument.String(), string(result.Outcome)).Inc()
		if result.Fee > 0 {
			feeSymbol, _ := e.assets.Symbol(result.FeeAsset)
			e.metrics.FeesCollected.WithLabelValues(feeSymbol).Add(float64(result.Fee))
		}
	}

	id := h.ID
	e.emit(event.TypeHedgeSettled, &caller, &id, symbol, map[string]any{
		"outcome":    string(result.Outcome),
		"end_value":  result.EndValue,
		"payoff":     result.Payoff,
		"tokens_due": result.TokensDue,
		"fee":        result.Fee,
	})
	e.applied("settle", start)
	e.log.Info().
		Uint64("hedge_id", id).
		Str("instrument", h.Instrument.String()).
		Str("outcome", string(result.Outcome)).
		Int64("payoff", result.Payoff).
		Msg("hedge settled")
	return nil
}
