package transfer

import (
	"context"

	"HedgeLedger/internal/ledger"

	"github.com/google/uuid"
)

// Mechanism moves fungible token balances in and out of the system.
// TransferIn returns the amount actually received, which may be less
// than requested for fee-on-transfer or short-delivering assets; the
// ledger must always credit the observed amount.
type Mechanism interface {
	TransferIn(ctx context.Context, asset ledger.AssetID, from uuid.UUID, amount int64) (int64, error)
	TransferOut(ctx context.Context, asset ledger.AssetID, to uuid.UUID, amount int64) error
}
