// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

// OrderBook reads the best levels of one on-chain market.
type OrderBook interface {
	Pair() domain.Pair

	// TopOfBook returns the current best bid and ask. Empty sides are nil.
	TopOfBook(ctx context.Context) (domain.TopOfBook, error)
}

// MarketResolver turns a configured pair into a readable order book.
type MarketResolver interface {
	Resolve(ctx context.Context, pair domain.Pair) (OrderBook, error)
}

// TickerHandler receives exchange ticker updates in arrival order.
type TickerHandler func(ctx context.Context, t domain.Ticker)

// TickerStream is a long-lived exchange ticker subscription that reconnects
// on its own.
type TickerStream interface {
	OnTicker(h TickerHandler)
	Start(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PriceSink accepts price updates from the feeds. Each feed calls it from a
// single goroutine.
type PriceSink interface {
	// ExchangePrice records one exchange price and triggers a broadcast.
	ExchangePrice(ctx context.Context, pair string, price float64)

	// OnChainCycle records the results of one poll cycle and triggers
	// exactly one broadcast, even when obs is empty.
	OnChainCycle(ctx context.Context, obs []domain.Observation)
}
