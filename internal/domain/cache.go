package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest prices.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// BaselineCache stores computed pair baselines with a bounded lifetime, so a
// restarted process can warm-start without an immediate full historical fetch.
type BaselineCache interface {
	Set(ctx context.Context, baseline PairBaseline, ttl time.Duration) error
	Get(ctx context.Context, pairID string) (PairBaseline, error)
}

// EventBus provides pub/sub for tick signals and ledger events, consumed by
// the WebSocket hub and any other presentation-side subscriber.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, error)
}

// BusMessage is a single message delivered by the EventBus.
type BusMessage struct {
	Channel string
	Payload []byte
}
