package query

import (
	"time"

	"HedgeLedger/internal/hedge"

	"github.com/google/uuid"
)

// HedgeSummary is the wire shape of one hedge record.
type HedgeSummary struct {
	ID         uint64    `json:"id"`
	Owner      uuid.UUID `json:"owner"`
	Taker      uuid.UUID `json:"taker,omitempty"`
	Asset      string    `json:"asset"`
	Instrument string    `json:"instrument"`
	Status     string    `json:"status"`

	Amount      int64 `json:"amount"`
	Cost        int64 `json:"cost"`
	StrikeValue int64 `json:"strike_value,omitempty"`

	CreateValue int64 `json:"create_value"`
	StartValue  int64 `json:"start_value,omitempty"`
	EndValue    int64 `json:"end_value,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	TakenAt   *time.Time `json:"taken_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	ZapByOwner bool `json:"zap_by_owner,omitempty"`
	ZapByTaker bool `json:"zap_by_taker,omitempty"`

	TopUps []TopUpSummary `json:"top_ups,omitempty"`

	Deleted bool `json:"deleted,omitempty"`
}

// TopUpSummary is the wire shape of one top-up negotiation round.
type TopUpSummary struct {
	ID               uint64    `json:"id"`
	Requester        uuid.UUID `json:"requester"`
	AmountFromWriter int64     `json:"amount_from_writer"`
	AmountFromTaker  int64     `json:"amount_from_taker"`
	State            string    `json:"state"`
	RequestedAt      time.Time `json:"requested_at"`
}

// Page wraps a paginated id-list response.
type Page struct {
	Items []HedgeSummary `json:"items"`
	Start int            `json:"start"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
}

func summarize(h hedge.Hedge, symbol string, topUps []hedge.TopUpRequest, deleted bool) HedgeSummary {
	s := HedgeSummary{
		ID:          h.ID,
		Owner:       h.Owner,
		Taker:       h.Taker,
		Asset:       symbol,
		Instrument:  h.Instrument.String(),
		Status:      h.Status.String(),
		Amount:      h.Amount,
		Cost:        h.Cost,
		StrikeValue: h.StrikeValue,
		CreateValue: h.CreateValue,
		StartValue:  h.StartValue,
		EndValue:    h.EndValue,
		CreatedAt:   h.CreatedAt,
		ExpiresAt:   h.ExpiresAt,
		ZapByOwner:  h.ZapByOwner,
		ZapByTaker:  h.ZapByTaker,
		Deleted:     deleted,
	}
	if !h.TakenAt.IsZero() {
		t := h.TakenAt
		s.TakenAt = &t
	}
	if !h.SettledAt.IsZero() {
		t := h.SettledAt
		s.SettledAt = &t
	}
	for _, req := range topUps {
		s.TopUps = append(s.TopUps, TopUpSummary{
			ID:               req.ID,
			Requester:        req.Requester,
			AmountFromWriter: req.AmountFromWriter,
			AmountFromTaker:  req.AmountFromTaker,
			State:            req.State.String(),
			RequestedAt:      req.RequestedAt,
		})
	}
	return s
}
