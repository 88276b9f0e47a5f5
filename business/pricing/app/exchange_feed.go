package app

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const meterName = "pricing"

type feedMetrics struct {
	tickers  metric.Int64Counter
	rejected metric.Int64Counter
}

// ExchangeFeed maps exchange tickers onto configured pairs and forwards
// their last price to a PriceSink.
type ExchangeFeed struct {
	stream TickerStream
	pairs  []domain.Pair
	logger logger.LoggerInterface

	sink    PriceSink
	started atomic.Bool
	metrics *feedMetrics
}

// NewExchangeFeed creates a feed over stream.
func NewExchangeFeed(stream TickerStream, pairs []domain.Pair, log logger.LoggerInterface) (*ExchangeFeed, error) {
	f := &ExchangeFeed{
		stream: stream,
		pairs:  pairs,
		logger: log,
	}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return f, nil
}

func (f *ExchangeFeed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.tickers, err = meter.Int64Counter(
		"exchange_tickers_total",
		metric.WithDescription("Exchange tickers applied to a pair"),
	)
	if err != nil {
		return err
	}

	f.metrics.rejected, err = meter.Int64Counter(
		"exchange_tickers_rejected_total",
		metric.WithDescription("Exchange tickers ignored, by reason"),
	)
	return err
}

// Start connects the stream and begins forwarding prices to sink. The
// initial dial happens in the background and is retried like any drop.
func (f *ExchangeFeed) Start(ctx context.Context, sink PriceSink) error {
	if !f.started.CompareAndSwap(false, true) {
		return nil
	}
	f.sink = sink
	f.stream.OnTicker(f.handleTicker)

	if err := f.stream.Start(ctx); err != nil {
		return apperror.Wrap(err, apperror.CodeBinanceConnectionFailed, "start ticker stream")
	}
	return nil
}

// Stop closes the exchange connection.
func (f *ExchangeFeed) Stop() error {
	return f.stream.Close()
}

// Connected reports whether the stream is live.
func (f *ExchangeFeed) Connected() bool {
	return f.stream.IsConnected()
}

func (f *ExchangeFeed) handleTicker(ctx context.Context, t domain.Ticker) {
	pair, ok := f.resolvePair(t)
	if !ok {
		f.reject(ctx, "unknown_symbol")
		f.logger.Debug(ctx, "ticker for unknown symbol", "stream", t.Stream, "symbol", t.Symbol)
		return
	}

	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil || !domain.IsValidPrice(price) {
		f.reject(ctx, "invalid_price")
		f.logger.Warn(ctx, "rejected exchange price", "pair", pair.Name, "price", t.LastPrice)
		return
	}

	f.metrics.tickers.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair.Name)))
	f.sink.ExchangePrice(ctx, pair.Name, price)
}

// resolvePair matches the stream's symbol, falling back to the payload
// symbol, against the configured pairs.
func (f *ExchangeFeed) resolvePair(t domain.Ticker) (domain.Pair, bool) {
	sym := t.StreamSymbol()
	if sym == "" {
		sym = t.Symbol
	}
	for _, p := range f.pairs {
		if p.MatchesSymbol(sym) {
			return p, true
		}
	}
	return domain.Pair{}, false
}

func (f *ExchangeFeed) reject(ctx context.Context, reason string) {
	f.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
