package oracle

import (
	"fmt"
	"sync"

	"HedgeLedger/internal/ledger"
)

// StaticOracle serves fixed unit prices. Used in tests and dry-run mode
// where no live price feed is wired.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[routeKey]int64
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[routeKey]int64)}
}

// SetUnitPrice pins the unit price for (asset, currency).
func (o *StaticOracle) SetUnitPrice(asset, currency ledger.AssetID, price int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[routeKey{asset: asset, currency: currency}] = price
}

func (o *StaticOracle) Quote(asset ledger.AssetID, amount int64) (Quote, error) {
	if ledger.IsReferenceCurrency(asset) {
		return Quote{Value: amount, Currency: asset}, nil
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, currency := range ledger.ReferenceCurrencies() {
		if price, ok := o.prices[routeKey{asset: asset, currency: currency}]; ok {
			return Quote{Value: price * amount, Currency: currency}, nil
		}
	}
	return Quote{}, fmt.Errorf("%w: asset %d", ErrNoMarketPair, asset)
}

func (o *StaticOracle) UnitPrice(asset ledger.AssetID) (Quote, error) {
	return o.Quote(asset, 1)
}
