package oracle

import (
	"fmt"
	"sync"
	"time"

	"HedgeLedger/internal/ledger"
)

// observation is one price sample: reference-currency units per asset unit.
type observation struct {
	price int64
	ts    time.Time
}

// TWAPOracle values assets from a time-weighted average of observed
// prices, which resists single-sample manipulation. Observations arrive
// from the price feed subscriber; quotes are served to the engine, so the
// oracle is internally locked.
//
// Routing falls back across the reference currencies in the fixed
// priority order (wrapped-native, then the two stables) before failing.
type TWAPOracle struct {
	mu     sync.RWMutex
	window time.Duration
	series map[routeKey][]observation
	clock  func() time.Time
}

type routeKey struct {
	asset    ledger.AssetID
	currency ledger.AssetID
}

// maxObservations bounds the per-route ring; old samples beyond the
// window are dropped on insert anyway.
const maxObservations = 256

func NewTWAPOracle(window time.Duration) *TWAPOracle {
	return &TWAPOracle{
		window: window,
		series: make(map[routeKey][]observation),
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (o *TWAPOracle) SetClock(clock func() time.Time) {
	o.clock = clock
}

// Observe records a price sample for (asset, currency). Out-of-order
// samples (timestamp not after the latest) are dropped.
func (o *TWAPOracle) Observe(asset, currency ledger.AssetID, price int64, ts time.Time) error {
	if price <= 0 {
		return fmt.Errorf("non-positive price %d for asset %d", price, asset)
	}
	if !ledger.IsReferenceCurrency(currency) {
		return fmt.Errorf("currency %d is not a reference currency", currency)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	key := routeKey{asset: asset, currency: currency}
	obs := o.series[key]

	if n := len(obs); n > 0 && !ts.After(obs[n-1].ts) {
		return fmt.Errorf("out-of-order observation for asset %d: %s <= %s",
			asset, ts, obs[n-1].ts)
	}

	obs = append(obs, observation{price: price, ts: ts})

	// Trim samples that fell out of the window, keeping one older sample
	// as the left edge of the weighted average.
	cutoff := o.clock().Add(-o.window)
	start := 0
	for start < len(obs)-1 && obs[start+1].ts.Before(cutoff) {
		start++
	}
	obs = obs[start:]

	if len(obs) > maxObservations {
		obs = obs[len(obs)-maxObservations:]
	}

	o.series[key] = obs
	return nil
}

// Quote values `amount` units of `asset`. A reference currency values at
// par against itself.
func (o *TWAPOracle) Quote(asset ledger.AssetID, amount int64) (Quote, error) {
	if ledger.IsReferenceCurrency(asset) {
		return Quote{Value: amount, Currency: asset}, nil
	}

	price, currency, err := o.twap(asset)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Value: price * amount, Currency: currency}, nil
}

// UnitPrice values exactly one unit of `asset`.
func (o *TWAPOracle) UnitPrice(asset ledger.AssetID) (Quote, error) {
	return o.Quote(asset, 1)
}

// twap tries each reference currency in priority order and returns the
// first route with a usable average.
func (o *TWAPOracle) twap(asset ledger.AssetID) (int64, ledger.AssetID, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	now := o.clock()
	routed := false

	for _, currency := range ledger.ReferenceCurrencies() {
		obs, ok := o.series[routeKey{asset: asset, currency: currency}]
		if !ok || len(obs) == 0 {
			continue
		}
		routed = true

		price, ok := weightedAverage(obs, now.Add(-o.window), now)
		if !ok {
			continue
		}
		return price, currency, nil
	}

	if routed {
		return 0, 0, fmt.Errorf("%w: asset %d", ErrStaleQuote, asset)
	}
	return 0, 0, fmt.Errorf("%w: asset %d", ErrNoMarketPair, asset)
}

// weightedAverage computes the time-weighted mean price over [from, to].
// Each sample is weighted by how long it was the latest price inside the
// window. Returns false if no sample intersects the window.
func weightedAverage(obs []observation, from, to time.Time) (int64, bool) {
	var weighted, total int64

	for i, sample := range obs {
		segStart := sample.ts
		if segStart.Before(from) {
			segStart = from
		}

		segEnd := to
		if i+1 < len(obs) {
			segEnd = obs[i+1].ts
		}
		if segEnd.After(to) {
			segEnd = to
		}
		if !segEnd.After(segStart) {
			continue
		}

		dur := segEnd.Sub(segStart).Milliseconds()
		if dur <= 0 {
			dur = 1
		}
		weighted += sample.price * dur
		total += dur
	}

	if total == 0 {
		// All samples predate the window; use the latest price as-is so a
		// quiet market does not lose its route.
		if len(obs) > 0 && !obs[len(obs)-1].ts.After(to) {
			return obs[len(obs)-1].price, true
		}
		return 0, false
	}

	return weighted / total, true
}
