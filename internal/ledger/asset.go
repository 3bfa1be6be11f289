package ledger

import (
	"fmt"
	"sync"
)

// AssetID maps asset symbols to numeric IDs for compact map keys.
type AssetID uint16

// Reference currencies every oracle route must terminate in.
// Priority order matters: quotes fall back WNATIVE → USDT → USDC.
const (
	AssetWNative AssetID = 1
	AssetUSDT    AssetID = 2
	AssetUSDC    AssetID = 3
)

// AssetRegistry maps asset symbols to IDs. Mutable at runtime (new
// collateral assets are admitted by the operator), so it is an explicit
// object rather than package globals.
type AssetRegistry struct {
	mu       sync.RWMutex
	toID     map[string]AssetID
	toSymbol map[AssetID]string
	nextID   AssetID
}

func NewAssetRegistry() *AssetRegistry {
	r := &AssetRegistry{
		toID:     make(map[string]AssetID),
		toSymbol: make(map[AssetID]string),
		nextID:   AssetUSDC + 1,
	}
	r.toID["WNATIVE"] = AssetWNative
	r.toID["USDT"] = AssetUSDT
	r.toID["USDC"] = AssetUSDC
	for sym, id := range r.toID {
		r.toSymbol[id] = sym
	}
	return r
}

// Register admits a new asset symbol and returns its ID. Registering an
// existing symbol returns the existing ID.
func (r *AssetRegistry) Register(symbol string) (AssetID, error) {
	if symbol == "" {
		return 0, fmt.Errorf("empty asset symbol")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.toID[symbol]; ok {
		return id, nil
	}

	id := r.nextID
	r.nextID++
	r.toID[symbol] = id
	r.toSymbol[id] = symbol
	return id, nil
}

func (r *AssetRegistry) ID(symbol string) (AssetID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.toID[symbol]
	return id, ok
}

func (r *AssetRegistry) Symbol(id AssetID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sym, ok := r.toSymbol[id]
	return sym, ok
}

// ReferenceCurrencies returns the fixed oracle fallback order.
func ReferenceCurrencies() []AssetID {
	return []AssetID{AssetWNative, AssetUSDT, AssetUSDC}
}

// IsReferenceCurrency reports whether id is one of the settlement
// currencies hedges can be denominated in.
func IsReferenceCurrency(id AssetID) bool {
	return id == AssetWNative || id == AssetUSDT || id == AssetUSDC
}
