package transfer

import (
	"context"
	"fmt"
	"sync"

	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// Bank is an in-memory token ledger implementing Mechanism. It backs
// tests and dry-run deployments; a production deployment adapts the real
// token transfer layer instead.
//
// A per-asset transfer fee (basis points) can be configured to simulate
// short-delivering assets.
type Bank struct {
	mu       sync.Mutex
	balances map[ledger.AssetID]map[uuid.UUID]int64
	vault    map[ledger.AssetID]int64
	feeBps   map[ledger.AssetID]int64
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[ledger.AssetID]map[uuid.UUID]int64),
		vault:    make(map[ledger.AssetID]int64),
		feeBps:   make(map[ledger.AssetID]int64),
	}
}

// Mint credits external balance to a wallet. Test/dev setup only.
func (b *Bank) Mint(asset ledger.AssetID, wallet uuid.UUID, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wallets(asset)[wallet] += amount
}

// SetTransferFeeBps makes the asset short-deliver by the given basis
// points on TransferIn.
func (b *Bank) SetTransferFeeBps(asset ledger.AssetID, bps int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feeBps[asset] = bps
}

// ExternalBalance returns the wallet's balance outside the system.
func (b *Bank) ExternalBalance(asset ledger.AssetID, wallet uuid.UUID) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wallets(asset)[wallet]
}

// VaultBalance returns the amount the system holds for an asset.
func (b *Bank) VaultBalance(asset ledger.AssetID) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vault[asset]
}

func (b *Bank) TransferIn(ctx context.Context, asset ledger.AssetID, from uuid.UUID, amount int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wallets := b.wallets(asset)
	if wallets[from] < amount {
		return 0, fmt.Errorf("external balance too low: have=%d, need=%d", wallets[from], amount)
	}

	received := amount - amount*b.feeBps[asset]/10_000
	wallets[from] -= amount
	b.vault[asset] += received
	return received, nil
}

func (b *Bank) TransferOut(ctx context.Context, asset ledger.AssetID, to uuid.UUID, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.vault[asset] < amount {
		return fmt.Errorf("vault balance too low for asset %d: have=%d, need=%d", asset, b.vault[asset], amount)
	}

	b.vault[asset] -= amount
	b.wallets(asset)[to] += amount
	return nil
}

func (b *Bank) wallets(asset ledger.AssetID) map[uuid.UUID]int64 {
	w, ok := b.balances[asset]
	if !ok {
		w = make(map[uuid.UUID]int64)
		b.balances[asset] = w
	}
	return w
}
