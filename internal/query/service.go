package query

import (
	"fmt"

	"HedgeLedger/internal/analytics"
	"HedgeLedger/internal/core"
	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPageLimit bounds unpaginated list requests.
const DefaultPageLimit = 50

// MaxPageLimit is the hard cap on a single page.
const MaxPageLimit = 500

// Service answers read requests against the engine. It never mutates
// state; all consistency comes from the engine's own locking.
type Service struct {
	engine *core.Engine
	log    zerolog.Logger
}

func NewService(engine *core.Engine, log zerolog.Logger) *Service {
	return &Service{
		engine: engine,
		log:    log.With().Str("component", "query").Logger(),
	}
}

// ClampPage normalizes a start/limit pair.
func ClampPage(start, limit int) (int, int) {
	if start < 0 {
		start = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return start, limit
}

// ResolveAsset maps a symbol to its id.
func (s *Service) ResolveAsset(symbol string) (ledger.AssetID, error) {
	id, ok := s.engine.ResolveAsset(symbol)
	if !ok {
		return 0, fmt.Errorf("unknown asset %q", symbol)
	}
	return id, nil
}

// Balances returns a wallet's per-asset positions.
func (s *Service) Balances(wallet uuid.UUID) []core.BalanceView {
	return s.engine.Balances(wallet)
}

// Balance returns a wallet's position in one asset by symbol.
func (s *Service) Balance(wallet uuid.UUID, symbol string) (core.BalanceView, error) {
	asset, err := s.ResolveAsset(symbol)
	if err != nil {
		return core.BalanceView{}, err
	}
	return s.engine.Balance(wallet, asset)
}

// Hedge returns one hedge by id, tombstones included.
func (s *Service) Hedge(id uint64) (HedgeSummary, error) {
	view, err := s.engine.GetHedge(id)
	if err != nil {
		return HedgeSummary{}, err
	}
	return summarize(view.Hedge, view.Symbol, view.TopUps, view.Deleted), nil
}

// CreatedBy pages through hedges written by a wallet, creation order.
func (s *Service) CreatedBy(wallet uuid.UUID, start, limit int) Page {
	return s.page(s.engine.HedgesCreatedBy(wallet), start, limit)
}

// TakenBy pages through hedges a wallet has taken.
func (s *Service) TakenBy(wallet uuid.UUID, start, limit int) Page {
	return s.page(s.engine.HedgesTakenBy(wallet), start, limit)
}

// ByAsset pages through all hedges written on an asset.
func (s *Service) ByAsset(symbol string, start, limit int) (Page, error) {
	asset, err := s.ResolveAsset(symbol)
	if err != nil {
		return Page{}, err
	}
	return s.page(s.engine.HedgesByAsset(asset), start, limit), nil
}

// SettledByAsset pages through settled hedges on an asset.
func (s *Service) SettledByAsset(symbol string, start, limit int) (Page, error) {
	asset, err := s.ResolveAsset(symbol)
	if err != nil {
		return Page{}, err
	}
	return s.page(s.engine.SettledByAsset(asset), start, limit), nil
}

// AllCreated pages through every hedge ever written.
func (s *Service) AllCreated(start, limit int) Page {
	return s.page(s.engine.AllCreated(), start, limit)
}

// AllTaken pages through every taken hedge.
func (s *Service) AllTaken(start, limit int) Page {
	return s.page(s.engine.AllTaken(), start, limit)
}

// AllSettled pages through every settled hedge.
func (s *Service) AllSettled(start, limit int) Page {
	return s.page(s.engine.AllSettled(), start, limit)
}

// Bookmarks returns a wallet's bookmarked hedges, hydrated.
func (s *Service) Bookmarks(wallet uuid.UUID) []HedgeSummary {
	return s.hydrate(s.engine.Bookmarks(wallet))
}

// PnL returns the wallet's realized profit/loss in a reference currency.
func (s *Service) PnL(wallet uuid.UUID, currencySymbol string) (analytics.ProfitLoss, error) {
	currency, err := s.ResolveAsset(currencySymbol)
	if err != nil {
		return analytics.ProfitLoss{}, err
	}
	return s.engine.PnL(currency, wallet), nil
}

// AssetActivity returns the volume and fee aggregates for an asset.
func (s *Service) AssetActivity(symbol string) (analytics.AssetStats, error) {
	asset, err := s.ResolveAsset(symbol)
	if err != nil {
		return analytics.AssetStats{}, err
	}
	return s.engine.AssetActivity(asset), nil
}

// Counters returns the global instrument counters.
func (s *Service) Counters() analytics.Counters {
	return s.engine.Counters()
}

// ProtocolTotals returns system-wide deposit/withdraw aggregates.
func (s *Service) ProtocolTotals(symbol string) (ledger.ProtocolTotals, error) {
	asset, err := s.ResolveAsset(symbol)
	if err != nil {
		return ledger.ProtocolTotals{}, err
	}
	return s.engine.ProtocolTotals(asset), nil
}

func (s *Service) page(ids []uint64, start, limit int) Page {
	start, limit = ClampPage(start, limit)
	window := analytics.Paginate(ids, start, limit)
	return Page{
		Items: s.hydrate(window),
		Start: start,
		Limit: limit,
		Total: len(ids),
	}
}

// hydrate resolves id lists into summaries. Ids that fail to resolve
// (raced deletions) are skipped rather than failing the page.
func (s *Service) hydrate(ids []uint64) []HedgeSummary {
	out := make([]HedgeSummary, 0, len(ids))
	for _, id := range ids {
		view, err := s.engine.GetHedge(id)
		if err != nil {
			s.log.Warn().Uint64("hedge_id", id).Err(err).Msg("indexed hedge failed to resolve")
			continue
		}
		out = append(out, summarize(view.Hedge, view.Symbol, view.TopUps, view.Deleted))
	}
	return out
}
