package analytics

import (
	"HedgeLedger/internal/hedge"
	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// AssetStats aggregates per-asset activity. Volumes are in the reference
// currency of the quotes that produced them; fees are in the asset the
// fee was charged in.
type AssetStats struct {
	CreateVolume  int64
	TakenVolume   int64
	SettledVolume int64
	FeesCollected int64
	MinerFeesPaid int64
}

// PnLKey addresses a wallet's profit/loss ledger in one reference currency.
type PnLKey struct {
	Currency ledger.AssetID
	Wallet   uuid.UUID
}

// ProfitLoss accumulates realized outcomes per (currency, wallet).
type ProfitLoss struct {
	Profits int64
	Losses  int64
}

// Counters is a snapshot of the global activity counters.
type Counters struct {
	Created       map[hedge.Instrument]int64
	Taken         map[hedge.Instrument]int64
	Settled       map[hedge.Instrument]int64
	Deleted       map[hedge.Instrument]int64
	SettledTrades int64
	DistinctMiner int64
}

type bookmarkSet struct {
	member map[uint64]bool
	order  []uint64
}

// Tracker is the derived bookkeeping over the registry and ledger:
// counters, per-entity index lists, the profit/loss ledger and bookmark
// sets. It never owns hedge records, only their ids.
//
// Not safe for concurrent use; the engine serializes access.
type Tracker struct {
	createdByWallet map[uuid.UUID][]uint64
	takenByWallet   map[uuid.UUID][]uint64
	byToken         map[ledger.AssetID][]uint64
	settledByToken  map[ledger.AssetID][]uint64
	created         []uint64
	taken           []uint64
	settled         []uint64

	createdCount map[hedge.Instrument]int64
	takenCount   map[hedge.Instrument]int64
	settledCount map[hedge.Instrument]int64
	deletedCount map[hedge.Instrument]int64

	settledTrades int64
	miners        map[uuid.UUID]struct{}

	assetStats map[ledger.AssetID]*AssetStats
	pnl        map[PnLKey]*ProfitLoss

	bookmarks map[uuid.UUID]*bookmarkSet
}

func NewTracker() *Tracker {
	return &Tracker{
		createdByWallet: make(map[uuid.UUID][]uint64),
		takenByWallet:   make(map[uuid.UUID][]uint64),
		byToken:         make(map[ledger.AssetID][]uint64),
		settledByToken:  make(map[ledger.AssetID][]uint64),
		createdCount:    make(map[hedge.Instrument]int64),
		takenCount:      make(map[hedge.Instrument]int64),
		settledCount:    make(map[hedge.Instrument]int64),
		deletedCount:    make(map[hedge.Instrument]int64),
		miners:          make(map[uuid.UUID]struct{}),
		assetStats:      make(map[ledger.AssetID]*AssetStats),
		pnl:             make(map[PnLKey]*ProfitLoss),
		bookmarks:       make(map[uuid.UUID]*bookmarkSet),
	}
}

func (t *Tracker) stats(asset ledger.AssetID) *AssetStats {
	s, ok := t.assetStats[asset]
	if !ok {
		s = &AssetStats{}
		t.assetStats[asset] = s
	}
	return s
}

// RecordCreated indexes a newly created hedge and books creation volume.
func (t *Tracker) RecordCreated(h *hedge.Hedge) {
	t.created = append(t.created, h.ID)
	t.createdByWallet[h.Owner] = append(t.createdByWallet[h.Owner], h.ID)
	t.byToken[h.Asset] = append(t.byToken[h.Asset], h.ID)
	t.createdCount[h.Instrument]++
	t.stats(h.Asset).CreateVolume += h.CreateValue
}

// RecordTaken indexes a taken hedge and books taken volume.
func (t *Tracker) RecordTaken(h *hedge.Hedge) {
	t.taken = append(t.taken, h.ID)
	t.takenByWallet[h.Taker] = append(t.takenByWallet[h.Taker], h.ID)
	t.takenCount[h.Instrument]++
	t.stats(h.Asset).TakenVolume += h.StartValue
}

// RecordDeleted counts a deletion. Index lists keep the id: the audit
// trail must still show the hedge existed.
func (t *Tracker) RecordDeleted(h *hedge.Hedge) {
	t.deletedCount[h.Instrument]++
}

// RecordSettled moves the hedge into the settled indices and updates the
// mining counters.
func (t *Tracker) RecordSettled(h *hedge.Hedge, settler uuid.UUID, settlerIsMiner bool) {
	t.settled = append(t.settled, h.ID)
	t.settledByToken[h.Asset] = append(t.settledByToken[h.Asset], h.ID)
	t.settledCount[h.Instrument]++
	t.settledTrades++
	t.stats(h.Asset).SettledVolume += h.EndValue

	if settlerIsMiner {
		t.miners[settler] = struct{}{}
	}
}

// AddFees books a collected fee split for an asset.
func (t *Tracker) AddFees(asset ledger.AssetID, protocolFee, minerFee int64) {
	s := t.stats(asset)
	s.FeesCollected += protocolFee + minerFee
	s.MinerFeesPaid += minerFee
}

// RecordProfit adds a realized gain to the (currency, wallet) ledger.
func (t *Tracker) RecordProfit(currency ledger.AssetID, wallet uuid.UUID, amount int64) {
	if amount <= 0 {
		return
	}
	t.profitLoss(currency, wallet).Profits += amount
}

// RecordLoss adds a realized loss to the (currency, wallet) ledger.
func (t *Tracker) RecordLoss(currency ledger.AssetID, wallet uuid.UUID, amount int64) {
	if amount <= 0 {
		return
	}
	t.profitLoss(currency, wallet).Losses += amount
}

func (t *Tracker) profitLoss(currency ledger.AssetID, wallet uuid.UUID) *ProfitLoss {
	key := PnLKey{Currency: currency, Wallet: wallet}
	pl, ok := t.pnl[key]
	if !ok {
		pl = &ProfitLoss{}
		t.pnl[key] = pl
	}
	return pl
}

// PnL returns the realized profit/loss for (currency, wallet).
func (t *Tracker) PnL(currency ledger.AssetID, wallet uuid.UUID) ProfitLoss {
	if pl, ok := t.pnl[PnLKey{Currency: currency, Wallet: wallet}]; ok {
		return *pl
	}
	return ProfitLoss{}
}

// AssetActivity returns the aggregate stats for an asset.
func (t *Tracker) AssetActivity(asset ledger.AssetID) AssetStats {
	if s, ok := t.assetStats[asset]; ok {
		return *s
	}
	return AssetStats{}
}

// Snapshot returns the global counters.
func (t *Tracker) Snapshot() Counters {
	c := Counters{
		Created:       make(map[hedge.Instrument]int64, len(t.createdCount)),
		Taken:         make(map[hedge.Instrument]int64, len(t.takenCount)),
		Settled:       make(map[hedge.Instrument]int64, len(t.settledCount)),
		Deleted:       make(map[hedge.Instrument]int64, len(t.deletedCount)),
		SettledTrades: t.settledTrades,
		DistinctMiner: int64(len(t.miners)),
	}
	for k, v := range t.createdCount {
		c.Created[k] = v
	}
	for k, v := range t.takenCount {
		c.Taken[k] = v
	}
	for k, v := range t.settledCount {
		c.Settled[k] = v
	}
	for k, v := range t.deletedCount {
		c.Deleted[k] = v
	}
	return c
}

// === Index list accessors (paginated by the query layer) ===

func (t *Tracker) CreatedBy(wallet uuid.UUID) []uint64 { return t.createdByWallet[wallet] }
func (t *Tracker) TakenBy(wallet uuid.UUID) []uint64   { return t.takenByWallet[wallet] }
func (t *Tracker) ByToken(asset ledger.AssetID) []uint64 {
	return t.byToken[asset]
}
func (t *Tracker) SettledByToken(asset ledger.AssetID) []uint64 {
	return t.settledByToken[asset]
}
func (t *Tracker) AllCreated() []uint64 { return t.created }
func (t *Tracker) AllTaken() []uint64   { return t.taken }
func (t *Tracker) AllSettled() []uint64 { return t.settled }

// === Bookmarks ===

// ToggleBookmark flips a wallet's bookmark for a hedge id and returns
// the new state. Unbookmarking removes the id from the enumeration list.
func (t *Tracker) ToggleBookmark(wallet uuid.UUID, hedgeID uint64) bool {
	set, ok := t.bookmarks[wallet]
	if !ok {
		set = &bookmarkSet{member: make(map[uint64]bool)}
		t.bookmarks[wallet] = set
	}

	if set.member[hedgeID] {
		delete(set.member, hedgeID)
		for i, id := range set.order {
			if id == hedgeID {
				set.order = append(set.order[:i], set.order[i+1:]...)
				break
			}
		}
		return false
	}

	set.member[hedgeID] = true
	set.order = append(set.order, hedgeID)
	return true
}

// IsBookmarked reports membership without mutating.
func (t *Tracker) IsBookmarked(wallet uuid.UUID, hedgeID uint64) bool {
	set, ok := t.bookmarks[wallet]
	return ok && set.member[hedgeID]
}

// Bookmarks returns the wallet's bookmarked hedge ids in insertion order.
func (t *Tracker) Bookmarks(wallet uuid.UUID) []uint64 {
	set, ok := t.bookmarks[wallet]
	if !ok {
		return []uint64{}
	}
	out := make([]uint64, len(set.order))
	copy(out, set.order)
	return out
}
