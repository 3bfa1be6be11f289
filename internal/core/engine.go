package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"HedgeLedger/internal/analytics"
	"HedgeLedger/internal/event"
	"HedgeLedger/internal/fee"
	"HedgeLedger/internal/hedge"
	"HedgeLedger/internal/ledger"
	"HedgeLedger/internal/observability"
	"HedgeLedger/internal/oracle"
	"HedgeLedger/internal/staking"
	"HedgeLedger/internal/transfer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine is the collateralized-hedge ledger and settlement engine. Every
// state-mutating operation is atomic: it validates and computes first,
// mutates last, so a failure leaves no partial effect. A single mutex
// serializes all operations on the instance (released unconditionally on
// every exit path via defer), which also stands in for the reentrancy
// guard of the source model.
type Engine struct {
	mu sync.Mutex

	operator uuid.UUID

	assets    *ledger.AssetRegistry
	book      *ledger.Book
	fees      *fee.Calculator
	registry  *hedge.Registry
	analytics *analytics.Tracker
	oracle    oracle.PriceOracle
	transfer  transfer.Mechanism
	staking   staking.RoleSource

	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time

	sequence    int64
	persistChan chan<- event.Envelope
	publishChan chan<- event.Envelope
}

// Deps carries everything the engine needs. PersistChan and PublishChan
// may be nil (tests); when set, persist sends block and publish sends
// drop on full, mirroring the audit-log/backpressure split.
type Deps struct {
	Operator uuid.UUID

	Assets   *ledger.AssetRegistry
	Oracle   oracle.PriceOracle
	Transfer transfer.Mechanism
	Staking  staking.RoleSource

	Metrics *observability.Metrics
	Logger  zerolog.Logger

	PersistChan chan<- event.Envelope
	PublishChan chan<- event.Envelope
}

func NewEngine(deps Deps) *Engine {
	return &Engine{
		operator:    deps.Operator,
		assets:      deps.Assets,
		book:        ledger.NewBook(),
		fees:        fee.NewCalculator(),
		registry:    hedge.NewRegistry(),
		analytics:   analytics.NewTracker(),
		oracle:      deps.Oracle,
		transfer:    deps.Transfer,
		staking:     deps.Staking,
		metrics:     deps.Metrics,
		log:         deps.Logger,
		now:         time.Now,
		persistChan: deps.PersistChan,
		publishChan: deps.PublishChan,
	}
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(clock func() time.Time) {
	e.now = clock
}

// SetSequence continues event numbering after the last persisted
// sequence. Call before the first operation.
func (e *Engine) SetSequence(seq int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sequence = seq
}

// Sequence returns the last assigned event sequence.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// === Balance operations ===

// Deposit moves tokens into the system and credits the amount actually
// received — never the requested amount, so short-delivering assets stay
// accounted correctly. Returns the credited amount.
func (e *Engine) Deposit(ctx context.Context, caller uuid.UUID, asset ledger.AssetID, amount int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	if amount <= 0 {
		return 0, e.reject("deposit", fmt.Errorf("%w: deposit amount %d", ErrInvalidParameters, amount))
	}
	symbol, ok := e.assets.Symbol(asset)
	if !ok {
		return 0, e.reject("deposit", fmt.Errorf("%w: unknown asset %d", ErrInvalidParameters, asset))
	}

	received, err := e.transfer.TransferIn(ctx, asset, caller, amount)
	if err != nil {
		return 0, e.reject("deposit", fmt.Errorf("transfer in: %w", err))
	}
	if received <= 0 {
		return 0, e.reject("deposit", fmt.Errorf("%w: transfer delivered %d", ErrInvalidParameters, received))
	}

	e.book.RecordDeposit(asset, caller, received)

	e.emit(event.TypeDeposited, &caller, nil, symbol, map[string]int64{
		"requested": amount,
		"received":  received,
	})
	e.applied("deposit", start)
	return received, nil
}

// Withdraw moves tokens out of the system. Fails with
// InsufficientBalance when the withdrawable amount cannot cover it.
func (e *Engine) Withdraw(ctx context.Context, caller uuid.UUID, asset ledger.AssetID, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	if amount <= 0 {
		return e.reject("withdraw", fmt.Errorf("%w: withdrawal amount %d", ledger.ErrInsufficientBalance, amount))
	}
	symbol, ok := e.assets.Symbol(asset)
	if !ok {
		return e.reject("withdraw", fmt.Errorf("%w: unknown asset %d", ErrInvalidParameters, asset))
	}
	if err := e.book.ValidateSufficientWithdrawable(asset, caller, amount); err != nil {
		return e.reject("withdraw", err)
	}

	if err := e.transfer.TransferOut(ctx, asset, caller, amount); err != nil {
		return e.reject("withdraw", fmt.Errorf("transfer out: %w", err))
	}

	if err := e.book.RecordWithdrawal(asset, caller, amount); err != nil {
		// Already validated above; a failure here is a bug.
		panic(fmt.Sprintf("FATAL: withdrawal bookkeeping failed after validation: %v", err))
	}

	e.emit(event.TypeWithdrawn, &caller, nil, symbol, map[string]int64{"amount": amount})
	e.applied("withdraw", start)
	return nil
}

// === Operator controls ===

// SetFeeRate replaces the protocol fee rate. Operator only; applies to
// subsequent calculations.
func (e *Engine) SetFeeRate(caller uuid.UUID, numerator, denominator int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.operator {
		return e.reject("set_fee_rate", fmt.Errorf("%w: caller is not the operator", ErrUnauthorized))
	}
	if err := e.fees.SetRate(numerator, denominator); err != nil {
		return e.reject("set_fee_rate", fmt.Errorf("%w: %v", ErrInvalidParameters, err))
	}

	e.emit(event.TypeFeeRateUpdated, &caller, nil, "", map[string]int64{
		"numerator":   numerator,
		"denominator": denominator,
	})
	e.log.Info().Int64("numerator", numerator).Int64("denominator", denominator).Msg("fee rate updated")
	return nil
}

// RegisterAsset admits a new collateral asset. Operator only.
func (e *Engine) RegisterAsset(caller uuid.UUID, symbol string) (ledger.AssetID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.operator {
		return 0, e.reject("register_asset", fmt.Errorf("%w: caller is not the operator", ErrUnauthorized))
	}
	id, err := e.assets.Register(symbol)
	if err != nil {
		return 0, e.reject("register_asset", fmt.Errorf("%w: %v", ErrInvalidParameters, err))
	}

	e.emit(event.TypeAssetRegistered, &caller, nil, symbol, nil)
	return id, nil
}

// FeeRate returns the current numerator/denominator pair.
func (e *Engine) FeeRate() (int64, int64) {
	return e.fees.Rate()
}

// === Bookmarks ===

// ToggleBookmark flips the caller's bookmark on a hedge id and returns
// the new state. The hedge must exist (live or settled).
func (e *Engine) ToggleBookmark(caller uuid.UUID, hedgeID uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.registry.Get(hedgeID); !ok {
		return false, e.reject("toggle_bookmark", e.hedgeLookupError(hedgeID))
	}
	return e.analytics.ToggleBookmark(caller, hedgeID), nil
}

// Bookmarks returns the caller's bookmarked hedge ids in insertion order.
func (e *Engine) Bookmarks(wallet uuid.UUID) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analytics.Bookmarks(wallet)
}

// === Internal helpers ===

// emit assigns the next sequence and fans the envelope out: blocking to
// the persistence channel (no audit event is ever lost), non-blocking to
// the publish channel (downstream consumers can replay from the log).
func (e *Engine) emit(typ event.Type, wallet *uuid.UUID, hedgeID *uint64, asset string, payload any) {
	e.sequence++

	env := event.Envelope{
		Sequence:  e.sequence,
		Type:      typ,
		TypeName:  typ.String(),
		HedgeID:   hedgeID,
		Asset:     asset,
		Timestamp: e.now(),
		Payload:   payload,
	}
	if wallet != nil {
		env.Wallet = *wallet
	}

	if e.persistChan != nil {
		e.persistChan <- env
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- env:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.EngineSequence.Set(float64(e.sequence))
	}
}

// reject records a rejected operation and passes the error through.
func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
	}
	e.log.Debug().Str("op", op).Err(err).Msg("operation rejected")
	return err
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.OpDuration.WithLabelValues(op).Observe(e.now().Sub(start).Seconds())
	}
}

// hedgeLookupError distinguishes a tombstoned id from a never-created one.
func (e *Engine) hedgeLookupError(id uint64) error {
	if e.registry.WasDeleted(id) {
		return fmt.Errorf("%w: hedge %d was deleted", ErrInvalidState, id)
	}
	return fmt.Errorf("%w: hedge %d does not exist", ErrInvalidState, id)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidParameters):
		return "invalid_parameters"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, fee.ErrAmountTooSmall):
		return "amount_too_small"
	case errors.Is(err, oracle.ErrNoMarketPair), errors.Is(err, oracle.ErrStaleQuote), errors.Is(err, ErrOracle):
		return "oracle"
	default:
		return "other"
	}
}

// isMiner reports whether the wallet holds a positive staked balance.
func (e *Engine) isMiner(wallet uuid.UUID) bool {
	return e.staking != nil && e.staking.IsStaked(wallet)
}
