package core

import (
	"context"
	"fmt"

	"HedgeLedger/internal/event"
	"HedgeLedger/internal/hedge"
	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// RequestTopUp opens a collateral top-up negotiation on a taken hedge.
// The writer offers underlying asset units; the taker offers reference
// currency. Nothing is locked until the counterparty accepts, but the
// start valuation moves immediately: the writer's offer by its quoted
// value, the taker's by the raw amount.
func (e *Engine) RequestTopUp(ctx context.Context, caller uuid.UUID, id uint64, amount int64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, err := e.takenHedgeParty(id, caller, "topup_request")
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, e.reject("topup_request", fmt.Errorf("%w: top-up amount %d", ErrInvalidParameters, amount))
	}
	if _, pending := e.registry.PendingTopUp(h, caller); pending {
		return 0, e.reject("topup_request", fmt.Errorf("%w: hedge %d already has an open top-up from this party", ErrInvalidState, id))
	}

	delta, fromWriter, err := e.topUpValuation(h, caller, amount)
	if err != nil {
		return 0, e.reject("topup_request", err)
	}

	req := e.registry.NewTopUp(h, caller, start)
	if fromWriter {
		req.AmountFromWriter = amount
	} else {
		req.AmountFromTaker = amount
	}
	h.StartValue += delta

	symbol, _ := e.assets.Symbol(h.Asset)
	e.emit(event.TypeTopUpRequested, &caller, &id, symbol, map[string]any{
		"topup_id":    req.ID,
		"from_writer": req.AmountFromWriter,
		"from_taker":  req.AmountFromTaker,
	})
	e.applied("topup_request", start)
	e.log.Info().
		Uint64("hedge_id", id).
		Uint64("topup_id", req.ID).
		Int64("amount", amount).
		Msg("top-up requested")
	return req.ID, nil
}

// IncreaseTopUp raises the requester's own pending offer before the
// counterparty has responded. The start valuation moves again, the same
// way it did at request time.
func (e *Engine) IncreaseTopUp(ctx context.Context, caller uuid.UUID, topUpID uint64, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, req, err := e.pendingTopUp(topUpID, "topup_increase")
	if err != nil {
		return err
	}
	if caller != req.Requester {
		return e.reject("topup_increase", fmt.Errorf("%w: only the requester may raise the offer", ErrUnauthorized))
	}
	if amount <= 0 {
		return e.reject("topup_increase", fmt.Errorf("%w: top-up increase %d", ErrInvalidParameters, amount))
	}
	delta, fromWriter, err := e.topUpValuation(h, caller, amount)
	if err != nil {
		return e.reject("topup_increase", err)
	}
	if fromWriter {
		req.AmountFromWriter += amount
	} else {
		req.AmountFromTaker += amount
	}
	h.StartValue += delta

	symbol, _ := e.assets.Symbol(h.Asset)
	e.emit(event.TypeTopUpIncreased, &caller, &req.HedgeID, symbol, map[string]any{
		"topup_id":    req.ID,
		"from_writer": req.AmountFromWriter,
		"from_taker":  req.AmountFromTaker,
	})
	e.applied("topup_increase", start)
	return nil
}

// AcceptTopUp converts the offer's counterpart side at the current
// oracle price, then locks collateral from both parties and folds the
// amounts into the hedge. Only the counterparty may accept, and both
// sides must have the withdrawable funds to back their share or the
// whole accept fails.
func (e *Engine) AcceptTopUp(ctx context.Context, caller uuid.UUID, topUpID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, req, err := e.pendingTopUp(topUpID, "topup_accept")
	if err != nil {
		return err
	}
	if caller == req.Requester || (caller != h.Owner && caller != h.Taker) {
		return e.reject("topup_accept", fmt.Errorf("%w: only the counterparty may accept", ErrUnauthorized))
	}

	fromWriter, fromTaker, err := e.topUpCounterpart(h, req)
	if err != nil {
		return e.reject("topup_accept", err)
	}

	if fromWriter > 0 {
		if err := e.book.ValidateSufficientWithdrawable(h.Asset, h.Owner, fromWriter); err != nil {
			return e.reject("topup_accept", fmt.Errorf("%w: writer side: %v", ErrInsufficientCollateral, err))
		}
	}
	if fromTaker > 0 {
		if err := e.book.ValidateSufficientWithdrawable(h.Currency, h.Taker, fromTaker); err != nil {
			return e.reject("topup_accept", fmt.Errorf("%w: taker side: %v", ErrInsufficientCollateral, err))
		}
	}

	if fromWriter > 0 {
		e.book.Credit(h.Asset, h.Owner, ledger.FieldLockedInUse, fromWriter)
		h.Amount += fromWriter
	}
	if fromTaker > 0 {
		e.book.Credit(h.Currency, h.Taker, ledger.FieldLockedInUse, fromTaker)
		h.Cost += fromTaker
	}
	req.AmountFromWriter = fromWriter
	req.AmountFromTaker = fromTaker
	req.State = hedge.TopUpAccepted
	req.AcceptedAt = start

	symbol, _ := e.assets.Symbol(h.Asset)
	e.emit(event.TypeTopUpAccepted, &caller, &req.HedgeID, symbol, map[string]any{
		"topup_id":    req.ID,
		"from_writer": req.AmountFromWriter,
		"from_taker":  req.AmountFromTaker,
	})
	e.applied("topup_accept", start)
	e.log.Info().
		Uint64("hedge_id", req.HedgeID).
		Uint64("topup_id", req.ID).
		Msg("top-up accepted")
	return nil
}

// RejectTopUp closes a pending offer without locking anything. Only the
// counterparty may reject. The start valuation is NOT rolled back.
func (e *Engine) RejectTopUp(ctx context.Context, caller uuid.UUID, topUpID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, req, err := e.pendingTopUp(topUpID, "topup_reject")
	if err != nil {
		return err
	}
	if caller == req.Requester || (caller != h.Owner && caller != h.Taker) {
		return e.reject("topup_reject", fmt.Errorf("%w: only the counterparty may reject", ErrUnauthorized))
	}

	req.State = hedge.TopUpRejected
	req.RejectedAt = start

	symbol, _ := e.assets.Symbol(h.Asset)
	e.emit(event.TypeTopUpRejected, &caller, &req.HedgeID, symbol, map[string]any{"topup_id": req.ID})
	e.applied("topup_reject", start)
	return nil
}

// CancelTopUp withdraws the requester's own pending offer. Allowed only
// while the taker side of the request is still zero.
func (e *Engine) CancelTopUp(ctx context.Context, caller uuid.UUID, topUpID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	h, req, err := e.pendingTopUp(topUpID, "topup_cancel")
	if err != nil {
		return err
	}
	if caller != req.Requester {
		return e.reject("topup_cancel", fmt.Errorf("%w: only the requester may cancel", ErrUnauthorized))
	}
	if req.AmountFromTaker != 0 {
		return e.reject("topup_cancel", fmt.Errorf("%w: top-up %d has a taker-side amount and cannot be canceled", ErrInvalidState, topUpID))
	}

	req.State = hedge.TopUpRejected
	req.RejectedAt = start

	symbol, _ := e.assets.Symbol(h.Asset)
	e.emit(event.TypeTopUpCanceled, &caller, &req.HedgeID, symbol, map[string]any{"topup_id": req.ID})
	e.applied("topup_cancel", start)
	return nil
}

// topUpValuation computes how much the caller's offer moves the start
// valuation: the quoted value for the writer's asset-denominated offer,
// the raw amount for the taker's reference-currency offer.
func (e *Engine) topUpValuation(h *hedge.Hedge, caller uuid.UUID, amount int64) (delta int64, fromWriter bool, err error) {
	if caller == h.Owner {
		quote, err := e.oracle.Quote(h.Asset, amount)
		if err != nil {
			return 0, false, err
		}
		return quote.Value, true, nil
	}
	return amount, false, nil
}

// topUpCounterpart fills in the non-requesting side of a pending offer
// at the current oracle price: the writer's asset units quote to the
// reference currency for the taker's share, and the taker's currency
// amount converts to asset units at the unit price (floor-divided).
func (e *Engine) topUpCounterpart(h *hedge.Hedge, req *hedge.TopUpRequest) (fromWriter, fromTaker int64, err error) {
	if req.Requester == h.Owner {
		quote, err := e.oracle.Quote(h.Asset, req.AmountFromWriter)
		if err != nil {
			return 0, 0, err
		}
		return req.AmountFromWriter, quote.Value, nil
	}

	unit, err := e.oracle.UnitPrice(h.Asset)
	if err != nil {
		return 0, 0, err
	}
	if unit.Value <= 0 {
		return 0, 0, fmt.Errorf("%w: zero unit price for asset %d", ErrOracle, h.Asset)
	}
	return req.AmountFromTaker / unit.Value, req.AmountFromTaker, nil
}

// takenHedgeParty resolves a taken hedge and checks the caller is one of
// its two parties.
func (e *Engine) takenHedgeParty(id uint64, caller uuid.UUID, op string) (*hedge.Hedge, error) {
	h, ok := e.registry.Get(id)
	if !ok {
		return nil, e.reject(op, e.hedgeLookupError(id))
	}
	if h.Status != hedge.StatusTaken {
		return nil, e.reject(op, fmt.Errorf("%w: hedge %d is %s, not taken", ErrInvalidState, id, h.Status))
	}
	if caller != h.Owner && caller != h.Taker {
		return nil, e.reject(op, fmt.Errorf("%w: caller is neither owner nor taker", ErrUnauthorized))
	}
	return h, nil
}

// pendingTopUp resolves an open top-up request and its hedge.
func (e *Engine) pendingTopUp(topUpID uint64, op string) (*hedge.Hedge, *hedge.TopUpRequest, error) {
	req, ok := e.registry.GetTopUp(topUpID)
	if !ok {
		return nil, nil, e.reject(op, fmt.Errorf("%w: top-up %d does not exist", ErrInvalidState, topUpID))
	}
	if req.State != hedge.TopUpRequested {
		return nil, nil, e.reject(op, fmt.Errorf("%w: top-up %d is %s", ErrInvalidState, topUpID, req.State))
	}
	h, ok := e.registry.Get(req.HedgeID)
	if !ok {
		return nil, nil, e.reject(op, e.hedgeLookupError(req.HedgeID))
	}
	if h.Status != hedge.StatusTaken {
		return nil, nil, e.reject(op, fmt.Errorf("%w: hedge %d is %s, not taken", ErrInvalidState, req.HedgeID, h.Status))
	}
	return h, req, nil
}
