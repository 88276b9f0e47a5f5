// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/spread-monitor/business/pricing/app"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Pairs         = di.NewToken[[]domain.Pair]("pricing.Pairs")
	SpreadService = di.NewToken[*app.SpreadService]("pricing.SpreadService")
	ExchangeFeed  = di.NewToken[*app.ExchangeFeed]("pricing.ExchangeFeed")
	OnChainPoller = di.NewToken[*app.OnChainPoller]("pricing.OnChainPoller")
)

// Private dependency tokens - internal to pricing module
var (
	TickerStream   = di.NewToken[app.TickerStream]("pricing:tickerStream")
	MarketResolver = di.NewToken[app.MarketResolver]("pricing:marketResolver")
)

// Helper functions for type-safe access
func GetPairs(c di.ServiceRegistry) []domain.Pair {
	return di.GetToken(c, Pairs)
}

func GetSpreadService(c di.ServiceRegistry) *app.SpreadService {
	return di.GetToken(c, SpreadService)
}

func GetExchangeFeed(c di.ServiceRegistry) *app.ExchangeFeed {
	return di.GetToken(c, ExchangeFeed)
}

func GetOnChainPoller(c di.ServiceRegistry) *app.OnChainPoller {
	return di.GetToken(c, OnChainPoller)
}

func GetTickerStream(c di.ServiceRegistry) app.TickerStream {
	return di.GetToken(c, TickerStream)
}

func GetMarketResolver(c di.ServiceRegistry) app.MarketResolver {
	return di.GetToken(c, MarketResolver)
}
