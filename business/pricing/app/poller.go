package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const tracerName = "pricing"

// PollerConfig configures the on-chain poller.
type PollerConfig struct {
	// Interval is the pause between the end of one cycle and the start of
	// the next.
	Interval time.Duration

	// StartupRetryDelay is the wait before retrying a failed startup.
	StartupRetryDelay time.Duration

	Clock clockwork.Clock
}

// DefaultPollerConfig returns a 1s interval with a 5s startup retry.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:          time.Second,
		StartupRetryDelay: 5 * time.Second,
	}
}

type pollerMetrics struct {
	cycles       metric.Int64Counter
	fetchErrors  metric.Int64Counter
	fetchLatency metric.Float64Histogram
	markets      metric.Int64Gauge
}

// OnChainPoller reads the top of book of every resolved market on a fixed
// cadence and reports each cycle's mid prices to a PriceSink.
type OnChainPoller struct {
	resolver MarketResolver
	pairs    []domain.Pair
	config   PollerConfig
	clock    clockwork.Clock
	logger   logger.LoggerInterface
	tracer   trace.Tracer
	metrics  *pollerMetrics

	mu      sync.RWMutex
	markets []OrderBook
	ready   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOnChainPoller creates a poller for pairs.
func NewOnChainPoller(resolver MarketResolver, pairs []domain.Pair, cfg PollerConfig, log logger.LoggerInterface) (*OnChainPoller, error) {
	def := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StartupRetryDelay <= 0 {
		cfg.StartupRetryDelay = def.StartupRetryDelay
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	p := &OnChainPoller{
		resolver: resolver,
		pairs:    pairs,
		config:   cfg,
		clock:    clock,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return p, nil
}

func (p *OnChainPoller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &pollerMetrics{}

	p.metrics.cycles, err = meter.Int64Counter(
		"onchain_poll_cycles_total",
		metric.WithDescription("Completed on-chain poll cycles"),
	)
	if err != nil {
		return err
	}

	p.metrics.fetchErrors, err = meter.Int64Counter(
		"onchain_fetch_errors_total",
		metric.WithDescription("Failed order book fetches"),
	)
	if err != nil {
		return err
	}

	p.metrics.fetchLatency, err = meter.Float64Histogram(
		"onchain_fetch_duration_ms",
		metric.WithDescription("Order book fetch latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.metrics.markets, err = meter.Int64Gauge(
		"onchain_markets_resolved",
		metric.WithDescription("Markets resolved at startup"),
	)
	return err
}

// Start launches the poll loop. It returns immediately; startup failures
// are retried in the background.
func (p *OnChainPoller) Start(ctx context.Context, sink PriceSink) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, sink)
	}()
}

// Stop cancels the loop and waits for it to exit.
func (p *OnChainPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Markets returns the names of the pairs being polled.
func (p *OnChainPoller) Markets() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.markets))
	for i, m := range p.markets {
		names[i] = m.Pair().Name
	}
	return names
}

// Ready reports whether startup completed.
func (p *OnChainPoller) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

func (p *OnChainPoller) run(ctx context.Context, sink PriceSink) {
	if !p.startup(ctx, sink) {
		return
	}

	markets := p.resolved()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.config.Interval):
		}
		obs, _ := p.cycle(ctx, markets)
		sink.OnChainCycle(ctx, obs)
	}
}

// startup resolves markets and runs the first cycle. The whole sequence is
// retried when nothing resolves or every fetch of the first cycle fails.
func (p *OnChainPoller) startup(ctx context.Context, sink PriceSink) bool {
	for {
		markets := p.resolveAll(ctx)
		if ctx.Err() != nil {
			return false
		}

		if len(markets) == 0 {
			p.logger.Error(ctx, "no on-chain market resolved, retrying startup",
				"retry_in", p.config.StartupRetryDelay.String())
		} else {
			obs, failed := p.cycle(ctx, markets)
			sink.OnChainCycle(ctx, obs)
			if failed < len(markets) {
				p.mu.Lock()
				p.markets = markets
				p.ready = true
				p.mu.Unlock()
				p.metrics.markets.Record(ctx, int64(len(markets)))
				p.logger.Info(ctx, "on-chain poller started", "markets", len(markets), "pairs", len(p.pairs))
				return true
			}
			p.logger.Error(ctx, "first poll cycle failed for every market, retrying startup",
				"retry_in", p.config.StartupRetryDelay.String())
		}

		select {
		case <-ctx.Done():
			return false
		case <-p.clock.After(p.config.StartupRetryDelay):
		}
	}
}

func (p *OnChainPoller) resolved() []OrderBook {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.markets
}

// resolveAll resolves each pair. A pair that fails is left out.
func (p *OnChainPoller) resolveAll(ctx context.Context) []OrderBook {
	markets := make([]OrderBook, 0, len(p.pairs))
	for _, pair := range p.pairs {
		m, err := p.resolver.Resolve(ctx, pair)
		if err != nil {
			p.logger.Error(ctx, "market resolution failed, pair excluded",
				"pair", pair.Name, "market", pair.MarketAddress, "error", err)
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

type fetchResult struct {
	obs domain.Observation
	ok  bool
	err error
}

// cycle fetches every market concurrently and waits for all of them.
// Results keep market order.
func (p *OnChainPoller) cycle(ctx context.Context, markets []OrderBook) (obs []domain.Observation, failed int) {
	ctx, span := p.tracer.Start(ctx, "onchain.cycle", trace.WithAttributes(
		attribute.Int("markets", len(markets)),
	))
	defer span.End()

	results := make([]fetchResult, len(markets))
	var wg sync.WaitGroup
	for i, m := range markets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.fetch(ctx, m)
		}()
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
		case r.ok:
			obs = append(obs, r.obs)
		}
	}

	p.metrics.cycles.Add(ctx, 1)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d fetches failed", failed, len(markets)))
	}
	return obs, failed
}

func (p *OnChainPoller) fetch(ctx context.Context, m OrderBook) fetchResult {
	pair := m.Pair().Name
	attrs := metric.WithAttributes(attribute.String("pair", pair))

	start := p.clock.Now()
	book, err := m.TopOfBook(ctx)
	p.metrics.fetchLatency.Record(ctx, float64(p.clock.Since(start).Milliseconds()), attrs)

	if err != nil {
		p.metrics.fetchErrors.Add(ctx, 1, attrs)
		p.logger.Error(ctx, "order book fetch failed", "pair", pair, "error", err)
		return fetchResult{err: err}
	}

	mid, ok := book.MidPrice()
	if !ok {
		p.logger.Debug(ctx, "order book side empty, keeping previous price",
			"pair", pair, "has_bid", book.Bid != nil, "has_ask", book.Ask != nil)
		return fetchResult{}
	}

	price, _ := mid.Float64()
	return fetchResult{obs: domain.Observation{Pair: pair, Price: price}, ok: true}
}
