package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"HedgeLedger/internal/event"

	"github.com/google/uuid"
)

// AuditWriter writes audit events to Postgres using multi-row INSERT.
// Writes are idempotent on the engine sequence, so a retried batch never
// duplicates rows.
type AuditWriter struct {
	db *sql.DB
}

// AuditRow is one row in audit.events.
type AuditRow struct {
	Sequence  int64
	EventType string
	HedgeID   *int64
	Wallet    uuid.UUID
	Asset     *string
	Payload   []byte
	Timestamp int64 // unix micros
}

func NewAuditWriter(db *sql.DB) *AuditWriter {
	return &AuditWriter{db: db}
}

// RowFromEnvelope converts an engine envelope into its storage shape.
func RowFromEnvelope(env event.Envelope) AuditRow {
	row := AuditRow{
		Sequence:  env.Sequence,
		EventType: env.TypeName,
		Wallet:    env.Wallet,
		Timestamp: env.Timestamp.UnixMicro(),
	}
	if env.HedgeID != nil {
		id := int64(*env.HedgeID)
		row.HedgeID = &id
	}
	if env.Asset != "" {
		asset := env.Asset
		row.Asset = &asset
	}
	if env.Payload != nil {
		if data, err := json.Marshal(env.Payload); err == nil {
			row.Payload = data
		}
	}
	return row
}

// WriteBatch writes a batch inside the given transaction.
func (w *AuditWriter) WriteBatch(ctx context.Context, tx *sql.Tx, rows []AuditRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO audit.events
		(sequence, event_type, hedge_id, wallet, asset, payload, ts_micros)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*7)

	for i, r := range rows {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			r.Sequence, r.EventType, r.HedgeID, r.Wallet.String(),
			r.Asset, r.Payload, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest persisted sequence, 0 when empty.
func (w *AuditWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM audit.events`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}
