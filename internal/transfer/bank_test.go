package transfer_test

import (
	"context"
	"testing"

	"HedgeLedger/internal/ledger"
	"HedgeLedger/internal/transfer"

	"github.com/google/uuid"
)

const asset ledger.AssetID = 7

func TestBank_TransferInMovesToVault(t *testing.T) {
	b := transfer.NewBank()
	wallet := uuid.New()
	b.Mint(asset, wallet, 1000)

	received, err := b.TransferIn(context.Background(), asset, wallet, 400)
	if err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if received != 400 {
		t.Errorf("received: got %d, want 400", received)
	}
	if got := b.ExternalBalance(asset, wallet); got != 600 {
		t.Errorf("external balance: got %d, want 600", got)
	}
	if got := b.VaultBalance(asset); got != 400 {
		t.Errorf("vault: got %d, want 400", got)
	}
}

func TestBank_TransferInShortDelivers(t *testing.T) {
	b := transfer.NewBank()
	wallet := uuid.New()
	b.Mint(asset, wallet, 10_000)
	b.SetTransferFeeBps(asset, 250) // 2.5%

	received, err := b.TransferIn(context.Background(), asset, wallet, 10_000)
	if err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if received != 9_750 {
		t.Errorf("received: got %d, want 9750", received)
	}
	// Sender is debited the full amount; the fee simply vanishes.
	if got := b.ExternalBalance(asset, wallet); got != 0 {
		t.Errorf("external balance: got %d, want 0", got)
	}
	if got := b.VaultBalance(asset); got != 9_750 {
		t.Errorf("vault: got %d, want 9750", got)
	}
}

func TestBank_TransferInInsufficient(t *testing.T) {
	b := transfer.NewBank()
	wallet := uuid.New()
	b.Mint(asset, wallet, 100)

	if _, err := b.TransferIn(context.Background(), asset, wallet, 101); err == nil {
		t.Error("transfer above external balance should fail")
	}
}

func TestBank_TransferOutRequiresVaultFunds(t *testing.T) {
	b := transfer.NewBank()
	wallet := uuid.New()
	b.Mint(asset, wallet, 500)
	b.TransferIn(context.Background(), asset, wallet, 500)

	if err := b.TransferOut(context.Background(), asset, wallet, 501); err == nil {
		t.Error("transfer above vault balance should fail")
	}
	if err := b.TransferOut(context.Background(), asset, wallet, 500); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if got := b.ExternalBalance(asset, wallet); got != 500 {
		t.Errorf("external balance after round trip: got %d, want 500", got)
	}
}
