package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	kafkax "github.com/ariefcatur/go-commerce-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/redisx"
)

// CancelConsumer releases a cancelled order's held reservations. Installed
// as the handler of the order.cancelled consumer in the sweeper binary.
type CancelConsumer struct {
	Ledger      *Ledger
	Redis       *redis.Client
	Producer    *kafkax.Producer // publishes stock.released
	ServiceName string
	Log         zerolog.Logger
}

func (c *CancelConsumer) HandleOrderCancelled(ctx context.Context, m kafkago.Message) error {
	var env commerce.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != commerce.EventOrderCancelled {
		return nil
	}

	// dedup by event_id so redelivery cannot re-run the release scan
	dkey := fmt.Sprintf(redisx.KeyDedup, "stock-cancel", env.EventID)
	if exists, _ := redisx.Exists(ctx, c.Redis, dkey); exists {
		return nil
	}
	_ = c.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[commerce.OrderCancelledPayload](env.Payload)
	if err != nil {
		return err
	}

	released, err := c.Ledger.ReleaseByOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if released == 0 {
		return nil
	}
	c.Log.Info().Str("order_id", p.OrderID).Int("released", released).
		Msg("reservations released for cancelled order")

	if c.Producer != nil {
		ev := commerce.Envelope{
			EventID:       uuid.NewString(),
			EventType:     commerce.EventStockReleased,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      c.ServiceName,
			TraceID:       env.TraceID,
			CorrelationID: p.OrderID,
			Payload: kafkax.MustMarshal(commerce.StockReleasedPayload{
				Quantity: released,
				Reason:   "ORDER_CANCELLED",
			}),
		}
		c.Producer.Publish(commerce.PartitionKey(p.OrderID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(commerce.EventStockReleased)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	return nil
}
