package hedge

import (
	"time"

	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// Instrument discriminates the three hedge types.
type Instrument uint8

const (
	InstrumentCall Instrument = iota
	InstrumentPut
	InstrumentSwap
)

func (i Instrument) String() string {
	switch i {
	case InstrumentCall:
		return "call"
	case InstrumentPut:
		return "put"
	case InstrumentSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// Valid reports whether the instrument tag is one of the three known types.
func (i Instrument) Valid() bool {
	return i == InstrumentCall || i == InstrumentPut || i == InstrumentSwap
}

// Status is the hedge lifecycle state. Transitions are forward-only:
// None → Created → Taken → Settled, with deletion as an alternate
// terminal reachable from Created (owner, any time) or from expired
// Taken (never for swaps).
type Status uint8

const (
	StatusNone Status = iota
	StatusCreated
	StatusTaken
	StatusSettled
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusCreated:
		return "created"
	case StatusTaken:
		return "taken"
	case StatusSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Hedge is one written position. Amount is in underlying asset units;
// Cost, StrikeValue and the valuations are in the reference currency.
type Hedge struct {
	ID         uint64
	Owner      uuid.UUID
	Taker      uuid.UUID // zero until taken
	Asset      ledger.AssetID
	Currency   ledger.AssetID // reference currency from the creation quote
	Instrument Instrument
	Status     Status

	Amount      int64
	Cost        int64
	StrikeValue int64 // strike price × amount, absolute

	CreateValue int64
	StartValue  int64
	EndValue    int64

	CreatedAt time.Time
	TakenAt   time.Time
	ExpiresAt time.Time
	SettledAt time.Time

	// Mutual-consent flags for expedited swap settlement.
	ZapByOwner bool
	ZapByTaker bool

	TopUps []uint64
}

// TopUpState is the negotiation sub-state of a top-up request.
type TopUpState uint8

const (
	TopUpRequested TopUpState = iota
	TopUpAccepted
	TopUpRejected
)

func (s TopUpState) String() string {
	switch s {
	case TopUpRequested:
		return "requested"
	case TopUpAccepted:
		return "accepted"
	case TopUpRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// TopUpRequest is one round of collateral top-up negotiation.
// AmountFromWriter is denominated in the underlying asset;
// AmountFromTaker in the reference currency.
type TopUpRequest struct {
	ID        uint64
	HedgeID   uint64
	Requester uuid.UUID

	AmountFromWriter int64
	AmountFromTaker  int64

	RequestedAt time.Time
	AcceptedAt  time.Time
	RejectedAt  time.Time

	State TopUpState
}
