package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"HedgeLedger/internal/event"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundPublisher drains the engine's publish channel onto JetStream
// for downstream consumers. Publish failures are non-fatal: the audit
// log in Postgres is the source of truth and consumers can replay from
// it.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan event.Envelope
	log       zerolog.Logger
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan event.Envelope, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		log:       log.With().Str("component", "publisher").Logger(),
	}
}

// Run publishes until the context is canceled or the channel closes.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.publish(ctx, env); err != nil {
				op.log.Warn().Int64("sequence", env.Sequence).Err(err).Msg("outbound publish failed")
			}
		}
	}
}

// publish sends to hedge.ledger.events.{event_type}[.{asset}].
func (op *OutboundPublisher) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", OutboundSubjectBase, env.TypeName)
	if env.Asset != "" {
		subject = fmt.Sprintf("%s.%s", subject, env.Asset)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}
