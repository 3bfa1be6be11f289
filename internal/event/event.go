package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates audit event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeDeposited
	TypeWithdrawn
	TypeHedgeCreated
	TypeHedgeTaken
	TypeHedgeDeleted
	TypeHedgeSettled
	TypeTopUpRequested
	TypeTopUpIncreased
	TypeTopUpAccepted
	TypeTopUpRejected
	TypeTopUpCanceled
	TypeZapRequested
	TypeFeeRateUpdated
	TypeAssetRegistered
)

func (t Type) String() string {
	switch t {
	case TypeDeposited:
		return "Deposited"
	case TypeWithdrawn:
		return "Withdrawn"
	case TypeHedgeCreated:
		return "HedgeCreated"
	case TypeHedgeTaken:
		return "HedgeTaken"
	case TypeHedgeDeleted:
		return "HedgeDeleted"
	case TypeHedgeSettled:
		return "HedgeSettled"
	case TypeTopUpRequested:
		return "TopUpRequested"
	case TypeTopUpIncreased:
		return "TopUpIncreased"
	case TypeTopUpAccepted:
		return "TopUpAccepted"
	case TypeTopUpRejected:
		return "TopUpRejected"
	case TypeTopUpCanceled:
		return "TopUpCanceled"
	case TypeZapRequested:
		return "ZapRequested"
	case TypeFeeRateUpdated:
		return "FeeRateUpdated"
	case TypeAssetRegistered:
		return "AssetRegistered"
	default:
		return "Unknown"
	}
}

// Envelope wraps every audit event the engine emits. Sequence is the
// engine's monotonic event counter; deleted hedge ids stay resolvable
// through this log even after the registry clears the record.
type Envelope struct {
	Sequence  int64     `json:"sequence"`
	Type      Type      `json:"-"`
	TypeName  string    `json:"event_type"`
	HedgeID   *uint64   `json:"hedge_id,omitempty"`
	Wallet    uuid.UUID `json:"wallet"`
	Asset     string    `json:"asset,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}
