package ledger_test

import (
	"errors"
	"testing"

	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// ============================================================================
// Test: AssetRegistry
// ============================================================================

func TestAssetRegistry_ReferenceCurrenciesFixed(t *testing.T) {
	r := ledger.NewAssetRegistry()

	for symbol, want := range map[string]ledger.AssetID{
		"WNATIVE": ledger.AssetWNative,
		"USDT":    ledger.AssetUSDT,
		"USDC":    ledger.AssetUSDC,
	} {
		id, ok := r.ID(symbol)
		if !ok {
			t.Fatalf("%s should be pre-registered", symbol)
		}
		if id != want {
			t.Errorf("%s: got id %d, want %d", symbol, id, want)
		}
	}
}

func TestAssetRegistry_RegisterAssignsSequentialIDs(t *testing.T) {
	r := ledger.NewAssetRegistry()

	id1, err := r.Register("GOLD")
	if err != nil {
		t.Fatalf("register GOLD: %v", err)
	}
	id2, err := r.Register("OIL")
	if err != nil {
		t.Fatalf("register OIL: %v", err)
	}

	if id1 != ledger.AssetUSDC+1 {
		t.Errorf("first registered id: got %d, want %d", id1, ledger.AssetUSDC+1)
	}
	if id2 != id1+1 {
		t.Errorf("second registered id: got %d, want %d", id2, id1+1)
	}
}

func TestAssetRegistry_RegisterExistingReturnsSameID(t *testing.T) {
	r := ledger.NewAssetRegistry()

	id1, _ := r.Register("GOLD")
	id2, _ := r.Register("GOLD")
	if id1 != id2 {
		t.Errorf("re-registering should return the same id: got %d and %d", id1, id2)
	}
}

func TestAssetRegistry_RegisterEmptySymbol(t *testing.T) {
	r := ledger.NewAssetRegistry()
	if _, err := r.Register(""); err == nil {
		t.Error("registering an empty symbol should fail")
	}
}

// ============================================================================
// Test: Book balances
// ============================================================================

func TestBook_InitialBalanceZero(t *testing.T) {
	bk := ledger.NewBook()
	wallet := uuid.New()

	b := bk.Get(ledger.AssetUSDT, wallet)
	if b.Deposited != 0 || b.Withdrawn != 0 || b.LockedInUse != 0 {
		t.Errorf("initial balance should be zero, got %+v", b)
	}
	if b.Withdrawable() != 0 {
		t.Errorf("initial withdrawable should be 0, got %d", b.Withdrawable())
	}
}

func TestBook_WithdrawableDerivation(t *testing.T) {
	bk := ledger.NewBook()
	wallet := uuid.New()

	bk.RecordDeposit(ledger.AssetUSDT, wallet, 1000)
	bk.Credit(ledger.AssetUSDT, wallet, ledger.FieldLockedInUse, 300)
	bk.Credit(ledger.AssetUSDT, wallet, ledger.FieldWithdrawn, 200)

	got := bk.Withdrawable(ledger.AssetUSDT, wallet)
	if got != 500 {
		t.Errorf("withdrawable: got %d, want 500 (1000 - 200 - 300)", got)
	}
}

func TestBook_RecordDepositUpdatesTotals(t *testing.T) {
	bk := ledger.NewBook()
	w1, w2 := uuid.New(), uuid.New()

	bk.RecordDeposit(ledger.AssetUSDT, w1, 700)
	bk.RecordDeposit(ledger.AssetUSDT, w2, 300)

	totals := bk.Totals(ledger.AssetUSDT)
	if totals.Deposited != 1000 {
		t.Errorf("protocol deposited total: got %d, want 1000", totals.Deposited)
	}
}

func TestBook_RecordWithdrawalInsufficient(t *testing.T) {
	bk := ledger.NewBook()
	wallet := uuid.New()

	bk.RecordDeposit(ledger.AssetUSDT, wallet, 100)

	err := bk.RecordWithdrawal(ledger.AssetUSDT, wallet, 101)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestBook_RecordWithdrawalExactBalance(t *testing.T) {
	bk := ledger.NewBook()
	wallet := uuid.New()

	bk.RecordDeposit(ledger.AssetUSDT, wallet, 100)
	if err := bk.RecordWithdrawal(ledger.AssetUSDT, wallet, 100); err != nil {
		t.Fatalf("withdrawing the exact balance should succeed: %v", err)
	}
	if got := bk.Withdrawable(ledger.AssetUSDT, wallet); got != 0 {
		t.Errorf("withdrawable after full withdrawal: got %d, want 0", got)
	}

	totals := bk.Totals(ledger.AssetUSDT)
	if totals.Withdrawn != 100 {
		t.Errorf("protocol withdrawn total: got %d, want 100", totals.Withdrawn)
	}
}

func TestBook_LockedFundsNotWithdrawable(t *testing.T) {
	bk := ledger.NewBook()
	wallet := uuid.New()

	bk.RecordDeposit(ledger.AssetUSDT, wallet, 100)
	bk.Credit(ledger.AssetUSDT, wallet, ledger.FieldLockedInUse, 60)

	err := bk.ValidateSufficientWithdrawable(ledger.AssetUSDT, wallet, 41)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("locked funds should not be withdrawable, got %v", err)
	}
	if err := bk.ValidateSufficientWithdrawable(ledger.AssetUSDT, wallet, 40); err != nil {
		t.Errorf("40 of 100-60 should be withdrawable: %v", err)
	}
}

func TestBook_NegativeFieldPanics(t *testing.T) {
	bk := ledger.NewBook()
	wallet := uuid.New()

	defer func() {
		if recover() == nil {
			t.Error("debiting below zero should panic")
		}
	}()
	bk.Debit(ledger.AssetUSDT, wallet, ledger.FieldLockedInUse, 1)
}

func TestBook_WalletAssetsFirstDepositOrder(t *testing.T) {
	bk := ledger.NewBook()
	wallet := uuid.New()

	bk.RecordDeposit(ledger.AssetUSDC, wallet, 10)
	bk.RecordDeposit(ledger.AssetWNative, wallet, 10)
	bk.RecordDeposit(ledger.AssetUSDC, wallet, 10) // repeat must not re-index

	assets := bk.WalletAssets(wallet)
	want := []ledger.AssetID{ledger.AssetUSDC, ledger.AssetWNative}
	if len(assets) != len(want) {
		t.Fatalf("got %d assets, want %d", len(assets), len(want))
	}
	for i := range want {
		if assets[i] != want[i] {
			t.Errorf("assets[%d]: got %d, want %d", i, assets[i], want[i])
		}
	}
}
