package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"HedgeLedger/internal/ledger"
	"HedgeLedger/internal/observability"
	"HedgeLedger/internal/oracle"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// PriceTick is the wire format of one price sample on hedge.prices.>.
// Price is reference-currency units per asset unit.
type PriceTick struct {
	Asset     string    `json:"asset"`
	Currency  string    `json:"currency"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceFeed consumes price ticks from JetStream and feeds them into the
// TWAP oracle. A tick the oracle rejects (stale, out-of-order,
// non-positive) is acked anyway: redelivery cannot make it valid.
type PriceFeed struct {
	js       jetstream.JetStream
	oracle   *oracle.TWAPOracle
	assets   *ledger.AssetRegistry
	metrics  *observability.Metrics
	log      zerolog.Logger
	consumer jetstream.ConsumeContext
}

func NewPriceFeed(js jetstream.JetStream, twap *oracle.TWAPOracle, assets *ledger.AssetRegistry, metrics *observability.Metrics, log zerolog.Logger) *PriceFeed {
	return &PriceFeed{
		js:      js,
		oracle:  twap,
		assets:  assets,
		metrics: metrics,
		log:     log.With().Str("component", "price_feed").Logger(),
	}
}

// Subscribe creates the durable consumer and starts delivery.
func (pf *PriceFeed) Subscribe(ctx context.Context) error {
	consumer, err := pf.js.CreateOrUpdateConsumer(ctx, PriceStreamName, jetstream.ConsumerConfig{
		Durable:       "hedge-prices",
		FilterSubject: PriceSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create price consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := pf.handle(msg.Data()); err != nil {
			pf.log.Debug().Err(err).Str("subject", msg.Subject()).Msg("price tick rejected")
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume prices: %w", err)
	}

	pf.consumer = cc
	pf.log.Info().Str("subject", PriceSubjects).Msg("price feed subscribed")
	return nil
}

func (pf *PriceFeed) handle(data []byte) error {
	var tick PriceTick
	if err := json.Unmarshal(data, &tick); err != nil {
		pf.failure("decode")
		return fmt.Errorf("decode tick: %w", err)
	}

	asset, ok := pf.assets.ID(tick.Asset)
	if !ok {
		pf.failure("unknown_asset")
		return fmt.Errorf("unknown asset %q", tick.Asset)
	}
	currency, ok := pf.assets.ID(tick.Currency)
	if !ok {
		pf.failure("unknown_currency")
		return fmt.Errorf("unknown currency %q", tick.Currency)
	}

	ts := tick.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := pf.oracle.Observe(asset, currency, tick.Price, ts); err != nil {
		pf.failure("rejected")
		return err
	}

	if pf.metrics != nil {
		pf.metrics.PriceObservations.WithLabelValues(tick.Asset, tick.Currency).Inc()
	}
	return nil
}

func (pf *PriceFeed) failure(reason string) {
	if pf.metrics != nil {
		pf.metrics.OracleFailures.WithLabelValues(reason).Inc()
	}
}

// Stop halts delivery.
func (pf *PriceFeed) Stop() {
	if pf.consumer != nil {
		pf.consumer.Stop()
	}
	pf.log.Info().Msg("price feed stopped")
}
