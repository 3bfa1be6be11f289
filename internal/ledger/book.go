package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInsufficientBalance is returned when a wallet's withdrawable balance
// cannot cover the requested amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Field selects which accumulator of a balance record a mutation targets.
type Field uint8

const (
	FieldDeposited Field = iota
	FieldWithdrawn
	FieldLockedInUse
)

func (f Field) String() string {
	switch f {
	case FieldDeposited:
		return "deposited"
	case FieldWithdrawn:
		return "withdrawn"
	case FieldLockedInUse:
		return "locked_in_use"
	default:
		return "unknown"
	}
}

// Key addresses one balance record.
type Key struct {
	Asset  AssetID
	Wallet uuid.UUID
}

// Balance is the per-(asset, wallet) record. All three fields are
// non-negative accumulators; the withdrawable amount is derived.
type Balance struct {
	Deposited   int64
	Withdrawn   int64
	LockedInUse int64
}

// Withdrawable is the amount the wallet can still move out or commit.
func (b Balance) Withdrawable() int64 {
	return b.Deposited - b.Withdrawn - b.LockedInUse
}

// ProtocolTotals is the per-asset solvency aggregate maintained in
// parallel with the per-wallet records.
type ProtocolTotals struct {
	Deposited int64
	Withdrawn int64
}

// Book maintains the in-memory balance records. It is not safe for
// concurrent use; the engine serializes all access behind its own lock.
type Book struct {
	balances map[Key]*Balance
	totals   map[AssetID]*ProtocolTotals

	// walletAssets lists, in first-deposit order, every asset a wallet
	// has ever held. Appended to exactly once per (asset, wallet).
	walletAssets map[uuid.UUID][]AssetID
	touched      map[Key]bool
}

func NewBook() *Book {
	return &Book{
		balances:     make(map[Key]*Balance),
		totals:       make(map[AssetID]*ProtocolTotals),
		walletAssets: make(map[uuid.UUID][]AssetID),
		touched:      make(map[Key]bool),
	}
}

func (bk *Book) record(asset AssetID, wallet uuid.UUID) *Balance {
	key := Key{Asset: asset, Wallet: wallet}
	b, ok := bk.balances[key]
	if !ok {
		b = &Balance{}
		bk.balances[key] = b
	}
	return b
}

// Get returns a copy of the balance record (zero record if never touched).
func (bk *Book) Get(asset AssetID, wallet uuid.UUID) Balance {
	if b, ok := bk.balances[Key{Asset: asset, Wallet: wallet}]; ok {
		return *b
	}
	return Balance{}
}

// Withdrawable returns deposited - withdrawn - lockedInUse.
func (bk *Book) Withdrawable(asset AssetID, wallet uuid.UUID) int64 {
	return bk.Get(asset, wallet).Withdrawable()
}

// Credit increases a field. Panics if amount is negative or the record
// invariant breaks afterwards: callers validate before mutating, so a
// violation here is a bug, not a caller error.
func (bk *Book) Credit(asset AssetID, wallet uuid.UUID, field Field, amount int64) {
	bk.apply(asset, wallet, field, amount)
}

// Debit decreases a field under the same invariant rules as Credit.
func (bk *Book) Debit(asset AssetID, wallet uuid.UUID, field Field, amount int64) {
	bk.apply(asset, wallet, field, -amount)
}

func (bk *Book) apply(asset AssetID, wallet uuid.UUID, field Field, delta int64) {
	b := bk.record(asset, wallet)

	var target *int64
	switch field {
	case FieldDeposited:
		target = &b.Deposited
	case FieldWithdrawn:
		target = &b.Withdrawn
	case FieldLockedInUse:
		target = &b.LockedInUse
	default:
		panic(fmt.Sprintf("FATAL: unknown balance field %d", field))
	}

	*target += delta

	if *target < 0 || b.Withdrawable() < 0 {
		panic(fmt.Sprintf(
			"FATAL: balance invariant violated for asset=%d wallet=%s after %s delta %d: deposited=%d withdrawn=%d locked=%d",
			asset, wallet, field, delta, b.Deposited, b.Withdrawn, b.LockedInUse,
		))
	}
}

// RecordDeposit credits the amount actually received by the transfer
// mechanism (never the requested amount) and maintains the protocol
// aggregate and the first-deposit asset index.
func (bk *Book) RecordDeposit(asset AssetID, wallet uuid.UUID, received int64) {
	if received <= 0 {
		panic(fmt.Sprintf("FATAL: non-positive deposit credit %d", received))
	}

	key := Key{Asset: asset, Wallet: wallet}
	if !bk.touched[key] {
		bk.touched[key] = true
		bk.walletAssets[wallet] = append(bk.walletAssets[wallet], asset)
	}

	bk.Credit(asset, wallet, FieldDeposited, received)
	bk.protocolTotals(asset).Deposited += received
}

// RecordWithdrawal validates and books a withdrawal.
func (bk *Book) RecordWithdrawal(asset AssetID, wallet uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive, got %d", ErrInsufficientBalance, amount)
	}
	if err := bk.ValidateSufficientWithdrawable(asset, wallet, amount); err != nil {
		return err
	}

	bk.Credit(asset, wallet, FieldWithdrawn, amount)
	bk.protocolTotals(asset).Withdrawn += amount
	return nil
}

// ValidateSufficientWithdrawable checks withdrawable >= required.
func (bk *Book) ValidateSufficientWithdrawable(asset AssetID, wallet uuid.UUID, required int64) error {
	withdrawable := bk.Withdrawable(asset, wallet)
	if withdrawable < required {
		return fmt.Errorf("%w: have=%d, need=%d", ErrInsufficientBalance, withdrawable, required)
	}
	return nil
}

func (bk *Book) protocolTotals(asset AssetID) *ProtocolTotals {
	t, ok := bk.totals[asset]
	if !ok {
		t = &ProtocolTotals{}
		bk.totals[asset] = t
	}
	return t
}

// Totals returns the per-asset protocol aggregate.
func (bk *Book) Totals(asset AssetID) ProtocolTotals {
	if t, ok := bk.totals[asset]; ok {
		return *t
	}
	return ProtocolTotals{}
}

// WalletAssets returns the assets a wallet has ever deposited, in
// first-deposit order.
func (bk *Book) WalletAssets(wallet uuid.UUID) []AssetID {
	assets := bk.walletAssets[wallet]
	out := make([]AssetID, len(assets))
	copy(out, assets)
	return out
}

// ValidateNonNegative re-checks the invariant for one record. Used by
// tests and periodic audits.
func (bk *Book) ValidateNonNegative(asset AssetID, wallet uuid.UUID) error {
	b := bk.Get(asset, wallet)
	if b.Withdrawable() < 0 {
		return fmt.Errorf("wallet %s has negative withdrawable for asset %d: %d",
			wallet, asset, b.Withdrawable())
	}
	return nil
}

// Snapshot returns a copy of all balance records.
func (bk *Book) Snapshot() map[Key]Balance {
	snap := make(map[Key]Balance, len(bk.balances))
	for k, v := range bk.balances {
		snap[k] = *v
	}
	return snap
}
