package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"HedgeLedger/internal/core"
	"HedgeLedger/internal/hedge"
	"HedgeLedger/internal/ledger"
	"HedgeLedger/internal/oracle"
	"HedgeLedger/internal/staking"
	"HedgeLedger/internal/transfer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Test fixture: a static-priced GOLD/USDT market with an in-memory bank.
type fixture struct {
	engine   *core.Engine
	oracle   *oracle.StaticOracle
	bank     *transfer.Bank
	miners   *staking.StaticSet
	assets   *ledger.AssetRegistry
	operator uuid.UUID
	gold     ledger.AssetID
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		oracle:   oracle.NewStaticOracle(),
		bank:     transfer.NewBank(),
		miners:   staking.NewStaticSet(),
		assets:   ledger.NewAssetRegistry(),
		operator: uuid.New(),
		now:      time.Unix(1_700_000_000, 0),
	}

	gold, err := f.assets.Register("GOLD")
	if err != nil {
		t.Fatalf("register GOLD: %v", err)
	}
	f.gold = gold
	f.oracle.SetUnitPrice(gold, ledger.AssetUSDT, 10)

	f.engine = core.NewEngine(core.Deps{
		Operator: f.operator,
		Assets:   f.assets,
		Oracle:   f.oracle,
		Transfer: f.bank,
		Staking:  f.miners,
		Logger:   zerolog.Nop(),
	})
	f.engine.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// fund mints external tokens and deposits them into the ledger.
func (f *fixture) fund(t *testing.T, wallet uuid.UUID, asset ledger.AssetID, amount int64) {
	t.Helper()
	f.bank.Mint(asset, wallet, amount)
	received, err := f.engine.Deposit(context.Background(), wallet, asset, amount)
	if err != nil {
		t.Fatalf("deposit %d of asset %d: %v", amount, asset, err)
	}
	if received != amount {
		t.Fatalf("deposit short-delivered: got %d, want %d", received, amount)
	}
}

func (f *fixture) balance(t *testing.T, wallet uuid.UUID, asset ledger.AssetID) core.BalanceView {
	t.Helper()
	bal, err := f.engine.Balance(wallet, asset)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

// createCall writes the standard test call: 100k GOLD at strike 11,
// premium 50k USDT, expiring in 24h.
func (f *fixture) createCall(t *testing.T, owner uuid.UUID) uint64 {
	t.Helper()
	id, err := f.engine.CreateHedge(context.Background(), owner, core.CreateParams{
		Instrument:  hedge.InstrumentCall,
		Asset:       f.gold,
		Amount:      100_000,
		Cost:        50_000,
		StrikePrice: 11,
		Expiry:      f.now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	return id
}

// ============================================================================
// Test: Deposit / Withdraw
// ============================================================================

func TestEngine_DepositCreditsActualReceived(t *testing.T) {
	f := newFixture(t)
	wallet := uuid.New()

	// 1% transfer fee: 10_000 sent, 9_900 delivered.
	f.bank.SetTransferFeeBps(f.gold, 100)
	f.bank.Mint(f.gold, wallet, 10_000)

	received, err := f.engine.Deposit(context.Background(), wallet, f.gold, 10_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if received != 9_900 {
		t.Errorf("received: got %d, want 9900", received)
	}
	if got := f.balance(t, wallet, f.gold).Deposited; got != 9_900 {
		t.Errorf("credited: got %d, want the delivered 9900, never the requested amount", got)
	}
}

func TestEngine_WithdrawInsufficient(t *testing.T) {
	f := newFixture(t)
	wallet := uuid.New()
	f.fund(t, wallet, f.gold, 100)

	err := f.engine.Withdraw(context.Background(), wallet, f.gold, 101)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	// Failed withdrawal must leave no partial effect.
	if got := f.balance(t, wallet, f.gold).Withdrawable; got != 100 {
		t.Errorf("withdrawable after failed withdraw: got %d, want 100", got)
	}
}

func TestEngine_WithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	wallet := uuid.New()
	f.fund(t, wallet, f.gold, 500)

	if err := f.engine.Withdraw(context.Background(), wallet, f.gold, 200); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.bank.ExternalBalance(f.gold, wallet); got != 200 {
		t.Errorf("external balance: got %d, want 200", got)
	}
	if got := f.balance(t, wallet, f.gold).Withdrawable; got != 300 {
		t.Errorf("withdrawable: got %d, want 300", got)
	}
}

// ============================================================================
// Test: Create
// ============================================================================

func TestEngine_CreateLocksCollateral(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)

	f.createCall(t, owner)

	bal := f.balance(t, owner, f.gold)
	if bal.LockedInUse != 100_000 {
		t.Errorf("locked: got %d, want 100000", bal.LockedInUse)
	}
	if bal.Withdrawable != 100_000 {
		t.Errorf("withdrawable: got %d, want 100000", bal.Withdrawable)
	}
}

func TestEngine_CreateCallRequiresOutOfTheMoneyStrike(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)

	// Strike 10 at price 10: strike value == creation value, not above it.
	_, err := f.engine.CreateHedge(context.Background(), owner, core.CreateParams{
		Instrument:  hedge.InstrumentCall,
		Asset:       f.gold,
		Amount:      100_000,
		Cost:        50_000,
		StrikePrice: 10,
		Expiry:      f.now.Add(24 * time.Hour),
	})
	if !errors.Is(err, core.ErrInvalidParameters) {
		t.Errorf("got %v, want ErrInvalidParameters", err)
	}
}

func TestEngine_CreateRejectsPastExpiry(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)

	_, err := f.engine.CreateHedge(context.Background(), owner, core.CreateParams{
		Instrument:  hedge.InstrumentCall,
		Asset:       f.gold,
		Amount:      100_000,
		Cost:        50_000,
		StrikePrice: 11,
		Expiry:      f.now.Add(-time.Second),
	})
	if !errors.Is(err, core.ErrInvalidParameters) {
		t.Errorf("got %v, want ErrInvalidParameters", err)
	}
}

func TestEngine_CreateWithoutCollateral(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 50_000) // less than the 100k amount

	_, err := f.engine.CreateHedge(context.Background(), owner, core.CreateParams{
		Instrument:  hedge.InstrumentCall,
		Asset:       f.gold,
		Amount:      100_000,
		Cost:        50_000,
		StrikePrice: 11,
		Expiry:      f.now.Add(24 * time.Hour),
	})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

// ============================================================================
// Test: Take
// ============================================================================

func TestEngine_TakeMovesPremium(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	if err := f.engine.TakeHedge(context.Background(), taker, id); err != nil {
		t.Fatalf("take: %v", err)
	}

	// Premium moves immediately, fee-free.
	if got := f.balance(t, taker, ledger.AssetUSDT).Withdrawable; got != 50_000 {
		t.Errorf("taker USDT withdrawable: got %d, want 50000", got)
	}
	if got := f.balance(t, owner, ledger.AssetUSDT).Deposited; got != 50_000 {
		t.Errorf("owner USDT deposited: got %d, want 50000", got)
	}

	view, err := f.engine.GetHedge(id)
	if err != nil {
		t.Fatalf("get hedge: %v", err)
	}
	if view.Hedge.Status != hedge.StatusTaken {
		t.Errorf("status: got %s, want taken", view.Hedge.Status)
	}
	if view.Hedge.StartValue != 1_000_000 {
		t.Errorf("start value: got %d, want 1000000", view.Hedge.StartValue)
	}
}

func TestEngine_TakeOwnHedge(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, owner, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	if err := f.engine.TakeHedge(context.Background(), owner, id); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestEngine_TakeTwice(t *testing.T) {
	f := newFixture(t)
	owner, t1, t2 := uuid.New(), uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, t1, ledger.AssetUSDT, 100_000)
	f.fund(t, t2, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	if err := f.engine.TakeHedge(context.Background(), t1, id); err != nil {
		t.Fatalf("first take: %v", err)
	}
	if err := f.engine.TakeHedge(context.Background(), t2, id); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("second take: got %v, want ErrInvalidState", err)
	}
}

// ============================================================================
// Test: Delete
// ============================================================================

func TestEngine_DeleteCreatedReleasesExactly(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)

	id := f.createCall(t, owner)
	if err := f.engine.DeleteHedge(context.Background(), owner, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	bal := f.balance(t, owner, f.gold)
	if bal.LockedInUse != 0 || bal.Withdrawable != 200_000 {
		t.Errorf("after delete: locked=%d withdrawable=%d, want 0/200000", bal.LockedInUse, bal.Withdrawable)
	}

	// The id is tombstoned, not reusable, and lookups say so.
	if err := f.engine.TakeHedge(context.Background(), uuid.New(), id); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("take deleted: got %v, want ErrInvalidState", err)
	}
	view, err := f.engine.GetHedge(id)
	if err != nil {
		t.Fatalf("get deleted hedge: %v", err)
	}
	if !view.Deleted {
		t.Error("deleted hedge view should carry the Deleted flag")
	}
}

func TestEngine_DeleteByStranger(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)

	id := f.createCall(t, owner)
	if err := f.engine.DeleteHedge(context.Background(), uuid.New(), id); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestEngine_DeleteTakenBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	if err := f.engine.DeleteHedge(context.Background(), owner, id); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("got %v, want ErrInvalidState", err)
	}
}

func TestEngine_MinerDeletesExpiredOption(t *testing.T) {
	f := newFixture(t)
	owner, taker, miner := uuid.New(), uuid.New(), uuid.New()
	f.miners.Add(miner)
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)
	f.advance(25 * time.Hour)

	if err := f.engine.DeleteHedge(context.Background(), miner, id); err != nil {
		t.Fatalf("miner delete: %v", err)
	}

	// Fee on the locked 100k at 5/1000 is 500, split half/half.
	ownerBal := f.balance(t, owner, f.gold)
	if ownerBal.Withdrawable != 200_000-500 {
		t.Errorf("owner withdrawable: got %d, want 199500", ownerBal.Withdrawable)
	}
	if got := f.balance(t, miner, f.gold).Deposited; got != 250 {
		t.Errorf("miner fee share: got %d, want 250", got)
	}
}

// ============================================================================
// Test: Option settlement
// ============================================================================

func TestEngine_CallSettlesInTheMoney(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.miners.Add(taker) // staked taker earns the miner share
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// Price rises 10 -> 25: payoff = 2_500_000 - 1_100_000 - 50_000.
	f.oracle.SetUnitPrice(f.gold, ledger.AssetUSDT, 25)

	result, err := f.engine.Settle(context.Background(), taker, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if result.Outcome != core.OutcomeTakerWins {
		t.Errorf("outcome: got %s, want taker_wins", result.Outcome)
	}
	if result.Payoff != 1_350_000 {
		t.Errorf("payoff: got %d, want 1350000", result.Payoff)
	}
	if result.TokensDue != 54_000 {
		t.Errorf("tokens due: got %d, want 54000 (1350000/25)", result.TokensDue)
	}
	// Fee 270 on 54000; 15% miner share (40) goes to the staked caller.
	if result.Fee != 270 || result.MinerFee != 40 || result.ProtocolFee != 230 {
		t.Errorf("fee split: got fee=%d protocol=%d miner=%d, want 270/230/40",
			result.Fee, result.ProtocolFee, result.MinerFee)
	}

	// Taker: tokens minus fee, plus their own miner share.
	if got := f.balance(t, taker, f.gold).Deposited; got != 53_770 {
		t.Errorf("taker GOLD: got %d, want 53770", got)
	}
	// Owner: full lock released, payout tokens marked withdrawn.
	ownerBal := f.balance(t, owner, f.gold)
	if ownerBal.LockedInUse != 0 {
		t.Errorf("owner lock: got %d, want 0", ownerBal.LockedInUse)
	}
	if ownerBal.Withdrawable != 200_000-54_000 {
		t.Errorf("owner GOLD withdrawable: got %d, want 146000", ownerBal.Withdrawable)
	}

	// Realized PnL in the hedge currency.
	if pl := f.engine.PnL(ledger.AssetUSDT, taker); pl.Profits != 1_350_000 {
		t.Errorf("taker profit: got %d, want 1350000", pl.Profits)
	}
	if pl := f.engine.PnL(ledger.AssetUSDT, owner); pl.Losses != 1_350_000 {
		t.Errorf("owner loss: got %d, want 1350000", pl.Losses)
	}
}

func TestEngine_UnstakedSettlerForfeitsMinerShare(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)
	f.oracle.SetUnitPrice(f.gold, ledger.AssetUSDT, 25)

	result, err := f.engine.Settle(context.Background(), taker, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.MinerFee != 0 {
		t.Errorf("unstaked caller miner fee: got %d, want 0", result.MinerFee)
	}
	if result.ProtocolFee != result.Fee {
		t.Errorf("protocol should absorb the whole fee: got %d of %d", result.ProtocolFee, result.Fee)
	}
}

func TestEngine_CallSettlesOutOfTheMoney(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// Price stays at 10: 1_000_000 < strike + premium.
	result, err := f.engine.Settle(context.Background(), taker, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != core.OutcomeOwnerWins {
		t.Errorf("outcome: got %s, want owner_wins", result.Outcome)
	}
	if result.Fee != 0 {
		t.Errorf("no payout means no fee, got %d", result.Fee)
	}

	// Writer keeps collateral and premium.
	bal := f.balance(t, owner, f.gold)
	if bal.LockedInUse != 0 || bal.Withdrawable != 200_000 {
		t.Errorf("owner after OTM settle: locked=%d withdrawable=%d", bal.LockedInUse, bal.Withdrawable)
	}
	if pl := f.engine.PnL(ledger.AssetUSDT, owner); pl.Profits != 50_000 {
		t.Errorf("owner keeps the premium as profit: got %d, want 50000", pl.Profits)
	}
}

func TestEngine_OptionSettleByStrangerBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	if _, err := f.engine.Settle(context.Background(), uuid.New(), id); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestEngine_ExpiredOptionSettleDeletes(t *testing.T) {
	f := newFixture(t)
	owner, taker, miner := uuid.New(), uuid.New(), uuid.New()
	f.miners.Add(miner)
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)
	f.advance(25 * time.Hour)

	result, err := f.engine.Settle(context.Background(), miner, id)
	if err != nil {
		t.Fatalf("settle expired: %v", err)
	}
	if result.Outcome != core.OutcomeExpired || !result.Deleted {
		t.Errorf("expired settle: got outcome=%s deleted=%v", result.Outcome, result.Deleted)
	}
	// Housekeeping fee split half/half with the miner.
	if result.ProtocolFee != 250 || result.MinerFee != 250 {
		t.Errorf("expiry fee split: got %d/%d, want 250/250", result.ProtocolFee, result.MinerFee)
	}

	view, err := f.engine.GetHedge(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !view.Deleted {
		t.Error("expired unexercised option should be tombstoned")
	}
}

// ============================================================================
// Test: Put settlement
// ============================================================================

// createPut writes the standard test put: 100k GOLD at strike 9,
// premium 50k USDT, expiring in 24h.
func (f *fixture) createPut(t *testing.T, owner uuid.UUID) uint64 {
	t.Helper()
	id, err := f.engine.CreateHedge(context.Background(), owner, core.CreateParams{
		Instrument:  hedge.InstrumentPut,
		Asset:       f.gold,
		Amount:      100_000,
		Cost:        50_000,
		StrikePrice: 9,
		Expiry:      f.now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create put: %v", err)
	}
	return id
}

func TestEngine_CreatePutRequiresOutOfTheMoneyStrike(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)

	// Strike 10 at price 10: strike value == creation value, not below it.
	_, err := f.engine.CreateHedge(context.Background(), owner, core.CreateParams{
		Instrument:  hedge.InstrumentPut,
		Asset:       f.gold,
		Amount:      100_000,
		Cost:        50_000,
		StrikePrice: 10,
		Expiry:      f.now.Add(24 * time.Hour),
	})
	if !errors.Is(err, core.ErrInvalidParameters) {
		t.Errorf("got %v, want ErrInvalidParameters", err)
	}
}

func TestEngine_PutSettlesInTheMoney(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createPut(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// Price drops 10 -> 5: payoff = 900_000 - 500_000 - 50_000.
	f.oracle.SetUnitPrice(f.gold, ledger.AssetUSDT, 5)

	result, err := f.engine.Settle(context.Background(), taker, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != core.OutcomeTakerWins {
		t.Errorf("outcome: got %s, want taker_wins", result.Outcome)
	}
	if result.Payoff != 350_000 {
		t.Errorf("payoff: got %d, want 350000", result.Payoff)
	}
	if result.TokensDue != 70_000 {
		t.Errorf("tokens due: got %d, want 70000 (350000/5)", result.TokensDue)
	}
	// Fee 350 on 70000; unstaked caller, so the protocol takes all of it.
	if result.Fee != 350 || result.ProtocolFee != 350 || result.MinerFee != 0 {
		t.Errorf("fee split: got fee=%d protocol=%d miner=%d, want 350/350/0",
			result.Fee, result.ProtocolFee, result.MinerFee)
	}

	if got := f.balance(t, taker, f.gold).Deposited; got != 69_650 {
		t.Errorf("taker GOLD: got %d, want 69650", got)
	}
	ownerBal := f.balance(t, owner, f.gold)
	if ownerBal.LockedInUse != 0 {
		t.Errorf("owner lock: got %d, want 0", ownerBal.LockedInUse)
	}
	if ownerBal.Withdrawable != 200_000-70_000 {
		t.Errorf("owner GOLD withdrawable: got %d, want 130000", ownerBal.Withdrawable)
	}
	if pl := f.engine.PnL(ledger.AssetUSDT, taker); pl.Profits != 350_000 {
		t.Errorf("taker profit: got %d, want 350000", pl.Profits)
	}
}

func TestEngine_PutSettlesOutOfTheMoney(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createPut(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// Price stays at 10: 900_000 < 1_000_000 + premium.
	result, err := f.engine.Settle(context.Background(), taker, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != core.OutcomeOwnerWins {
		t.Errorf("outcome: got %s, want owner_wins", result.Outcome)
	}

	bal := f.balance(t, owner, f.gold)
	if bal.LockedInUse != 0 || bal.Withdrawable != 200_000 {
		t.Errorf("owner after OTM settle: locked=%d withdrawable=%d", bal.LockedInUse, bal.Withdrawable)
	}
	if pl := f.engine.PnL(ledger.AssetUSDT, owner); pl.Profits != 50_000 {
		t.Errorf("owner keeps the premium as profit: got %d, want 50000", pl.Profits)
	}
}

// ============================================================================
// Test: Swap lifecycle
// ============================================================================

func (f *fixture) createSwap(t *testing.T, owner uuid.UUID) uint64 {
	t.Helper()
	id, err := f.engine.CreateHedge(context.Background(), owner, core.CreateParams{
		Instrument: hedge.InstrumentSwap,
		Asset:      f.gold,
		Amount:     100_000,
		Cost:       1_200_000,
		Expiry:     f.now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create swap: %v", err)
	}
	return id
}

func TestEngine_SwapTakeLocksCost(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	if err := f.engine.TakeHedge(context.Background(), taker, id); err != nil {
		t.Fatalf("take swap: %v", err)
	}

	// Cost is locked as collateral, not paid as premium.
	bal := f.balance(t, taker, ledger.AssetUSDT)
	if bal.LockedInUse != 1_200_000 {
		t.Errorf("taker locked: got %d, want 1200000", bal.LockedInUse)
	}
	if got := f.balance(t, owner, ledger.AssetUSDT).Deposited; got != 0 {
		t.Errorf("owner should receive nothing at take: got %d", got)
	}

	view, _ := f.engine.GetHedge(id)
	// Start valuation includes the locked cost.
	if view.Hedge.StartValue != 2_200_000 {
		t.Errorf("swap start value: got %d, want 2200000", view.Hedge.StartValue)
	}
}

func TestEngine_SwapRequiresZapOrExpiry(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	if _, err := f.engine.Settle(context.Background(), taker, id); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("settle without zap: got %v, want ErrInvalidState", err)
	}

	// One-sided zap is not enough.
	if err := f.engine.RequestZap(context.Background(), taker, id); err != nil {
		t.Fatalf("taker zap: %v", err)
	}
	if _, err := f.engine.Settle(context.Background(), taker, id); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("settle with one zap: got %v, want ErrInvalidState", err)
	}
}

func TestEngine_SwapTakerWins(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)
	f.engine.RequestZap(context.Background(), owner, id)
	f.engine.RequestZap(context.Background(), taker, id)

	// 10 -> 30: valuation 3_000_000 against start 2_200_000.
	f.oracle.SetUnitPrice(f.gold, ledger.AssetUSDT, 30)

	result, err := f.engine.Settle(context.Background(), taker, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != core.OutcomeTakerWins {
		t.Errorf("outcome: got %s, want taker_wins", result.Outcome)
	}
	if result.Payoff != 800_000 {
		t.Errorf("payoff: got %d, want 800000", result.Payoff)
	}
	if result.TokensDue != 26_666 {
		t.Errorf("tokens due: got %d, want 26666 (800000/30 floored)", result.TokensDue)
	}

	// Taker's locked cost comes back in full.
	bal := f.balance(t, taker, ledger.AssetUSDT)
	if bal.LockedInUse != 0 || bal.Withdrawable != 2_000_000 {
		t.Errorf("taker USDT after win: locked=%d withdrawable=%d", bal.LockedInUse, bal.Withdrawable)
	}
	// Fee 134 on 26666 (unstaked caller: all to protocol).
	if got := f.balance(t, taker, f.gold).Deposited; got != 26_532 {
		t.Errorf("taker GOLD: got %d, want 26532", got)
	}
}

func TestEngine_SwapWriterWins(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)
	f.advance(25 * time.Hour) // settle via expiry

	// 10 -> 15: valuation 1_500_000 below start 2_200_000; payoff 700_000.
	f.oracle.SetUnitPrice(f.gold, ledger.AssetUSDT, 15)

	result, err := f.engine.Settle(context.Background(), owner, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Outcome != core.OutcomeOwnerWins {
		t.Errorf("outcome: got %s, want owner_wins", result.Outcome)
	}
	if result.Payoff != 700_000 {
		t.Errorf("payoff: got %d, want 700000", result.Payoff)
	}

	// Writer's collateral fully released; payoff arrives minus fee 3500.
	goldBal := f.balance(t, owner, f.gold)
	if goldBal.LockedInUse != 0 || goldBal.Withdrawable != 200_000 {
		t.Errorf("owner GOLD: locked=%d withdrawable=%d", goldBal.LockedInUse, goldBal.Withdrawable)
	}
	if got := f.balance(t, owner, ledger.AssetUSDT).Deposited; got != 696_500 {
		t.Errorf("owner USDT: got %d, want 696500", got)
	}
	// Taker: cost released, payoff marked withdrawn.
	bal := f.balance(t, taker, ledger.AssetUSDT)
	if bal.LockedInUse != 0 {
		t.Errorf("taker lock: got %d, want 0", bal.LockedInUse)
	}
	if bal.Withdrawable != 2_000_000-700_000 {
		t.Errorf("taker withdrawable: got %d, want 1300000", bal.Withdrawable)
	}
}

func TestEngine_TakenSwapNotDeletable(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)
	f.advance(25 * time.Hour)

	if err := f.engine.DeleteHedge(context.Background(), owner, id); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("got %v, want ErrInvalidState (taken swaps must settle)", err)
	}
}

// ============================================================================
// Test: Top-up negotiation
// ============================================================================

func TestEngine_TopUpAcceptLocksBothSides(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 300_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// Writer offers 10k GOLD more; taker must accept and match it with
	// the converted value (100k USDT at price 10).
	topUpID, err := f.engine.RequestTopUp(context.Background(), owner, id, 10_000)
	if err != nil {
		t.Fatalf("request top-up: %v", err)
	}
	if err := f.engine.AcceptTopUp(context.Background(), taker, topUpID); err != nil {
		t.Fatalf("accept top-up: %v", err)
	}

	if got := f.balance(t, owner, f.gold).LockedInUse; got != 110_000 {
		t.Errorf("owner locked after top-up: got %d, want 110000", got)
	}
	if got := f.balance(t, taker, ledger.AssetUSDT).LockedInUse; got != 1_300_000 {
		t.Errorf("taker locked after top-up: got %d, want 1300000", got)
	}
	view, _ := f.engine.GetHedge(id)
	if view.Hedge.Amount != 110_000 {
		t.Errorf("hedge amount: got %d, want 110000", view.Hedge.Amount)
	}
	if view.Hedge.Cost != 1_300_000 {
		t.Errorf("hedge cost: got %d, want 1300000", view.Hedge.Cost)
	}
	if len(view.TopUps) != 1 || view.TopUps[0].AmountFromTaker != 100_000 {
		t.Errorf("accepted request should carry the converted taker side, got %+v", view.TopUps)
	}
}

func TestEngine_TopUpTakerRequestConvertsToWriterUnits(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 300_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// Taker offers 50k USDT; the writer matches 5k GOLD at price 10.
	topUpID, err := f.engine.RequestTopUp(context.Background(), taker, id, 50_000)
	if err != nil {
		t.Fatalf("request top-up: %v", err)
	}
	if err := f.engine.AcceptTopUp(context.Background(), owner, topUpID); err != nil {
		t.Fatalf("accept top-up: %v", err)
	}

	if got := f.balance(t, owner, f.gold).LockedInUse; got != 105_000 {
		t.Errorf("owner locked: got %d, want 105000", got)
	}
	if got := f.balance(t, taker, ledger.AssetUSDT).LockedInUse; got != 1_250_000 {
		t.Errorf("taker locked: got %d, want 1250000", got)
	}
	view, _ := f.engine.GetHedge(id)
	if view.Hedge.Amount != 105_000 || view.Hedge.Cost != 1_250_000 {
		t.Errorf("hedge after top-up: amount=%d cost=%d, want 105000/1250000",
			view.Hedge.Amount, view.Hedge.Cost)
	}
}

func TestEngine_TopUpAcceptTakerSideUnfunded(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 300_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// 150k GOLD converts to 1.5M USDT; the taker's free 800k cannot
	// match it, so nothing locks on either side.
	topUpID, _ := f.engine.RequestTopUp(context.Background(), owner, id, 150_000)
	if err := f.engine.AcceptTopUp(context.Background(), taker, topUpID); !errors.Is(err, core.ErrInsufficientCollateral) {
		t.Errorf("got %v, want ErrInsufficientCollateral", err)
	}
	if got := f.balance(t, owner, f.gold).LockedInUse; got != 100_000 {
		t.Errorf("owner locked: got %d, want unchanged 100000", got)
	}
	if got := f.balance(t, taker, ledger.AssetUSDT).LockedInUse; got != 1_200_000 {
		t.Errorf("taker locked: got %d, want unchanged 1200000", got)
	}
}

func TestEngine_TopUpRequesterCannotAccept(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 300_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	topUpID, _ := f.engine.RequestTopUp(context.Background(), owner, id, 10_000)
	if err := f.engine.AcceptTopUp(context.Background(), owner, topUpID); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestEngine_TopUpAcceptWithoutFunds(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 100_000) // exactly the created amount, nothing spare
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	topUpID, _ := f.engine.RequestTopUp(context.Background(), owner, id, 10_000)
	if err := f.engine.AcceptTopUp(context.Background(), taker, topUpID); !errors.Is(err, core.ErrInsufficientCollateral) {
		t.Errorf("got %v, want ErrInsufficientCollateral", err)
	}
	// Nothing locked on failure.
	if got := f.balance(t, owner, f.gold).LockedInUse; got != 100_000 {
		t.Errorf("owner locked: got %d, want unchanged 100000", got)
	}
}

func TestEngine_TopUpRequestMovesStartValueEvenWhenRejected(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 300_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	before, _ := f.engine.GetHedge(id)

	// 10k GOLD at price 10 moves the start valuation by 100_000 at
	// REQUEST time; a later rejection does not roll it back.
	topUpID, _ := f.engine.RequestTopUp(context.Background(), owner, id, 10_000)
	if err := f.engine.RejectTopUp(context.Background(), taker, topUpID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	after, _ := f.engine.GetHedge(id)
	if after.Hedge.StartValue != before.Hedge.StartValue+100_000 {
		t.Errorf("start value: got %d, want %d", after.Hedge.StartValue, before.Hedge.StartValue+100_000)
	}
	if after.Hedge.Amount != before.Hedge.Amount {
		t.Errorf("rejected top-up must not change the amount: got %d", after.Hedge.Amount)
	}
}

func TestEngine_TopUpCancelOnlyBeforeTakerSide(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 300_000)
	f.fund(t, taker, ledger.AssetUSDT, 2_000_000)

	id := f.createSwap(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)

	// Writer-side request: taker side still zero, cancel allowed.
	writerReq, _ := f.engine.RequestTopUp(context.Background(), owner, id, 10_000)
	if err := f.engine.CancelTopUp(context.Background(), owner, writerReq); err != nil {
		t.Fatalf("cancel writer request: %v", err)
	}

	// Taker-side request carries a taker amount from the start: locked in.
	takerReq, _ := f.engine.RequestTopUp(context.Background(), taker, id, 5_000)
	if err := f.engine.CancelTopUp(context.Background(), taker, takerReq); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("cancel taker request: got %v, want ErrInvalidState", err)
	}
}

// ============================================================================
// Test: Operator controls and bookmarks
// ============================================================================

func TestEngine_SetFeeRateOperatorOnly(t *testing.T) {
	f := newFixture(t)

	if err := f.engine.SetFeeRate(uuid.New(), 1, 100); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("non-operator: got %v, want ErrUnauthorized", err)
	}
	if err := f.engine.SetFeeRate(f.operator, 1, 100); err != nil {
		t.Fatalf("operator set rate: %v", err)
	}
	num, den := f.engine.FeeRate()
	if num != 1 || den != 100 {
		t.Errorf("rate: got %d/%d, want 1/100", num, den)
	}
}

func TestEngine_RegisterAssetOperatorOnly(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.RegisterAsset(uuid.New(), "OIL"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
	id, err := f.engine.RegisterAsset(f.operator, "OIL")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got, _ := f.engine.ResolveAsset("OIL"); got != id {
		t.Errorf("resolve OIL: got %d, want %d", got, id)
	}
}

func TestEngine_BookmarkRequiresExistingHedge(t *testing.T) {
	f := newFixture(t)
	wallet := uuid.New()

	if _, err := f.engine.ToggleBookmark(wallet, 99); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("got %v, want ErrInvalidState", err)
	}

	owner := uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	id := f.createCall(t, owner)

	on, err := f.engine.ToggleBookmark(wallet, id)
	if err != nil || !on {
		t.Fatalf("toggle on: %v %v", on, err)
	}
	if got := f.engine.Bookmarks(wallet); len(got) != 1 || got[0] != id {
		t.Errorf("bookmarks: got %v, want [%d]", got, id)
	}
}

// ============================================================================
// Test: Fee rate change affects settlement
// ============================================================================

func TestEngine_SettlementUsesCurrentFeeRate(t *testing.T) {
	f := newFixture(t)
	owner, taker := uuid.New(), uuid.New()
	f.fund(t, owner, f.gold, 200_000)
	f.fund(t, taker, ledger.AssetUSDT, 100_000)

	id := f.createCall(t, owner)
	f.engine.TakeHedge(context.Background(), taker, id)
	f.oracle.SetUnitPrice(f.gold, ledger.AssetUSDT, 25)

	// 1% instead of the default 0.5%.
	if err := f.engine.SetFeeRate(f.operator, 10, 1000); err != nil {
		t.Fatalf("set rate: %v", err)
	}

	result, err := f.engine.Settle(context.Background(), taker, id)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// 54000 - 54000*990/1000 = 540.
	if result.Fee != 540 {
		t.Errorf("fee at 10/1000: got %d, want 540", result.Fee)
	}
}

// ============================================================================
// Test: Sequence numbering
// ============================================================================

func TestEngine_SequenceResumes(t *testing.T) {
	f := newFixture(t)
	f.engine.SetSequence(41)

	wallet := uuid.New()
	f.fund(t, wallet, f.gold, 100)

	if got := f.engine.Sequence(); got != 42 {
		t.Errorf("sequence after one op: got %d, want 42", got)
	}
}
