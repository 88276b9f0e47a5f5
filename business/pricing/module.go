// Package pricing implements the pricing bounded context: exchange and
// on-chain price feeds and the fee-adjusted spread between them.
package pricing

import (
	"context"

	"github.com/fd1az/spread-monitor/business/pricing/app"
	pricingDI "github.com/fd1az/spread-monitor/business/pricing/di"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/business/pricing/infra/binance"
	"github.com/fd1az/spread-monitor/business/pricing/infra/serum"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/di"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/monolith"
	"github.com/fd1az/spread-monitor/internal/solana"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.Pairs, func(sr di.ServiceRegistry) []domain.Pair {
		cfg := sr.Get("config").(*config.Config)
		return PairsFromConfig(cfg.Pairs)
	})

	// Register TickerStream (Binance) - private dependency
	di.RegisterToken(c, pricingDI.TickerStream, func(sr di.ServiceRegistry) app.TickerStream {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		symbols := make([]string, len(cfg.Pairs))
		for i, p := range cfg.Pairs {
			symbols[i] = p.ExchangeSymbol
		}

		clientCfg := binance.DefaultClientConfig(symbols)
		clientCfg.BaseURL = cfg.Binance.WebSocketURL
		clientCfg.ReconnectDelay = cfg.Binance.ReconnectDelay
		clientCfg.MaxMessageSize = cfg.Binance.MaxMessageSize

		client, err := binance.NewClient(clientCfg, log)
		if err != nil {
			panic("failed to create binance client: " + err.Error())
		}
		return client
	})

	// Register MarketResolver (Serum over Solana RPC) - private dependency
	di.RegisterToken(c, pricingDI.MarketResolver, func(sr di.ServiceRegistry) app.MarketResolver {
		log := sr.Get("logger").(logger.LoggerInterface)
		rpc := sr.Get("solanaClient").(*solana.Client)
		return serum.NewResolver(rpc, log)
	})

	// Register SpreadService (public - owned by the monitor event loop)
	di.RegisterToken(c, pricingDI.SpreadService, func(sr di.ServiceRegistry) *app.SpreadService {
		cfg := sr.Get("config").(*config.Config)
		fees := domain.Fees{
			Exchange:        cfg.Spread.ExchangeFee(),
			OnChain:         cfg.Spread.OnChainFee(),
			ProfitThreshold: cfg.Spread.Threshold(),
		}
		return app.NewSpreadService(domain.NewPriceStore(), pricingDI.GetPairs(sr), fees, nil)
	})

	di.RegisterToken(c, pricingDI.ExchangeFeed, func(sr di.ServiceRegistry) *app.ExchangeFeed {
		log := sr.Get("logger").(logger.LoggerInterface)

		feed, err := app.NewExchangeFeed(pricingDI.GetTickerStream(sr), pricingDI.GetPairs(sr), log)
		if err != nil {
			panic("failed to create exchange feed: " + err.Error())
		}
		return feed
	})

	di.RegisterToken(c, pricingDI.OnChainPoller, func(sr di.ServiceRegistry) *app.OnChainPoller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		poller, err := app.NewOnChainPoller(pricingDI.GetMarketResolver(sr), pricingDI.GetPairs(sr), app.PollerConfig{
			Interval:          cfg.OnChain.PollInterval,
			StartupRetryDelay: cfg.OnChain.StartupRetryDelay,
		}, log)
		if err != nil {
			panic("failed to create on-chain poller: " + err.Error())
		}
		return poller
	})

	return nil
}

// Startup initializes the pricing module. Feeds are started by the
// monitor, which owns the price sink.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	pairs := pricingDI.GetPairs(mono.Services())
	mono.Logger().Info(ctx, "pricing module started", "pairs", len(pairs))
	return nil
}

// PairsFromConfig converts configured pairs to domain pairs, keeping order.
func PairsFromConfig(cfgs []config.PairConfig) []domain.Pair {
	pairs := make([]domain.Pair, len(cfgs))
	for i, p := range cfgs {
		pairs[i] = domain.Pair{
			Name:           p.Name,
			MarketAddress:  p.MarketAddress,
			ProgramAddress: p.ProgramAddress,
			ExchangeSymbol: p.ExchangeSymbol,
		}
	}
	return pairs
}
