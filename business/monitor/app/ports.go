// Package app contains the monitor coordinator that owns all mutable state.
package app

import (
	"context"

	pricingApp "github.com/fd1az/spread-monitor/business/pricing/app"
)

// ExchangeFeed is the streaming exchange price source.
type ExchangeFeed interface {
	Start(ctx context.Context, sink pricingApp.PriceSink) error
	Stop() error
	Connected() bool
}

// OnChainFeed is the polled on-chain price source.
type OnChainFeed interface {
	Start(ctx context.Context, sink pricingApp.PriceSink)
	Stop()
	Ready() bool
	Markets() []string
}
