package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	broadcastApp "github.com/fd1az/spread-monitor/business/broadcast/app"
	"github.com/fd1az/spread-monitor/business/broadcast/domain"
	pricingApp "github.com/fd1az/spread-monitor/business/pricing/app"
	pricing "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const meterName = "monitor"

// DefaultQueueSize bounds pending events before producers block.
const DefaultQueueSize = 1024

// Ensure interface compliance
var (
	_ pricingApp.PriceSink = (*Coordinator)(nil)
	_ broadcastApp.Events  = (*Coordinator)(nil)
)

// Deps are the coordinator's collaborators.
type Deps struct {
	Spreads   *pricingApp.SpreadService
	Hub       *broadcastApp.Hub
	Exchange  ExchangeFeed
	OnChain   OnChainFeed
	Transport broadcastApp.Transport
	QueueSize int
}

// Status is a point-in-time view of the monitor.
type Status struct {
	ExchangeConnected bool
	OnChainReady      bool
	Markets           []string
	Clients           int
}

type coordinatorMetrics struct {
	events   metric.Int64Counter
	rejected metric.Int64Counter
}

// Coordinator runs a single event loop that owns the price store and the
// subscriber registry. Feeds, the transport and in-process subscribers
// submit work to it; handlers run one at a time, so every broadcast sees a
// consistent snapshot.
type Coordinator struct {
	spreads   *pricingApp.SpreadService
	hub       *broadcastApp.Hub
	exchange  ExchangeFeed
	onChain   OnChainFeed
	transport broadcastApp.Transport
	logger    logger.LoggerInterface
	metrics   *coordinatorMetrics

	events   chan func(context.Context)
	done     chan struct{}
	loopDone chan struct{}

	started  atomic.Bool
	stopOnce sync.Once
	clients  atomic.Int64
}

// NewCoordinator wires the collaborators together.
func NewCoordinator(deps Deps, log logger.LoggerInterface) (*Coordinator, error) {
	if deps.QueueSize <= 0 {
		deps.QueueSize = DefaultQueueSize
	}
	c := &Coordinator{
		spreads:   deps.Spreads,
		hub:       deps.Hub,
		exchange:  deps.Exchange,
		onChain:   deps.OnChain,
		transport: deps.Transport,
		logger:    log,
		events:    make(chan func(context.Context), deps.QueueSize),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *Coordinator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &coordinatorMetrics{}

	c.metrics.events, err = meter.Int64Counter(
		"monitor_events_total",
		metric.WithDescription("Events handled by the coordinator loop"),
	)
	if err != nil {
		return err
	}

	c.metrics.rejected, err = meter.Int64Counter(
		"monitor_prices_rejected_total",
		metric.WithDescription("Prices rejected as invalid or for unknown pairs"),
	)
	return err
}

// Start runs the event loop, opens the subscriber listener and starts both
// feeds. A listener failure is returned and nothing else is started.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	go c.loop(ctx)

	if c.transport != nil {
		if err := c.transport.Start(ctx, c); err != nil {
			c.stopLoop()
			return err
		}
	}
	if err := c.exchange.Start(ctx, c); err != nil {
		c.logger.Error(ctx, "exchange feed failed to start", "error", err)
	}
	c.onChain.Start(ctx, c)

	c.logger.Info(ctx, "monitor started", "pairs", len(c.spreads.Pairs()))
	return nil
}

// Stop closes the exchange connection, closes every client connection and
// stops accepting new ones. Queued events are discarded.
func (c *Coordinator) Stop(ctx context.Context) {
	c.stopOnce.Do(func() {
		if !c.started.Load() {
			return
		}
		if err := c.exchange.Stop(); err != nil {
			c.logger.Warn(ctx, "closing exchange feed", "error", err)
		}
		if c.transport != nil {
			if err := c.transport.Shutdown(ctx); err != nil {
				c.logger.Warn(ctx, "closing subscriber server", "error", err)
			}
		}
		c.onChain.Stop()
		c.stopLoop()
		c.logger.Info(ctx, "monitor stopped")
	})
}

func (c *Coordinator) stopLoop() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	<-c.loopDone
}

func (c *Coordinator) loop(ctx context.Context) {
	defer close(c.loopDone)
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.events:
			fn(ctx)
			c.metrics.events.Add(ctx, 1)
		}
	}
}

// submit queues fn for the loop. It reports false once the loop has
// stopped.
func (c *Coordinator) submit(fn func(context.Context)) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// ExchangePrice stores an exchange price and broadcasts.
func (c *Coordinator) ExchangePrice(_ context.Context, pair string, price float64) {
	c.submit(func(ctx context.Context) {
		if !c.spreads.ApplyExchangePrice(pair, price) {
			c.metrics.rejected.Add(ctx, 1)
			c.logger.Warn(ctx, "rejected exchange price", "pair", pair, "price", price)
			return
		}
		c.hub.BroadcastCycle(ctx)
	})
}

// OnChainCycle stores one poll cycle's prices and broadcasts once.
func (c *Coordinator) OnChainCycle(_ context.Context, obs []pricing.Observation) {
	c.submit(func(ctx context.Context) {
		for _, r := range c.spreads.ApplyOnChain(obs) {
			c.metrics.rejected.Add(ctx, 1)
			c.logger.Warn(ctx, "rejected on-chain price", "pair", r.Pair, "price", r.Price)
		}
		c.hub.BroadcastCycle(ctx)
	})
}

// ClientConnected registers a transport client.
func (c *Coordinator) ClientConnected(client broadcastApp.Client) {
	c.submit(func(ctx context.Context) {
		c.hub.OnConnect(ctx, client)
		c.clients.Store(int64(c.hub.Clients()))
	})
}

// ClientMessage hands an inbound message to the hub.
func (c *Coordinator) ClientMessage(id string, raw []byte) {
	c.submit(func(ctx context.Context) {
		c.hub.OnMessage(ctx, id, raw)
	})
}

// ClientDisconnected removes a transport client.
func (c *Coordinator) ClientDisconnected(id string) {
	c.submit(func(ctx context.Context) {
		c.hub.OnDisconnect(ctx, id)
		c.clients.Store(int64(c.hub.Clients()))
	})
}

// Attach registers an in-process subscriber with topics already applied.
func (c *Coordinator) Attach(client broadcastApp.Client, topics ...domain.Topic) error {
	ok := c.submit(func(ctx context.Context) {
		c.hub.OnConnect(ctx, client)
		c.hub.Subscribe(ctx, client.ID(), topics...)
		c.clients.Store(int64(c.hub.Clients()))
	})
	if !ok {
		return apperror.New(apperror.CodeCoordinatorNotActive, apperror.WithContext("attach "+client.ID()))
	}
	return nil
}

// Detach removes an in-process subscriber.
func (c *Coordinator) Detach(id string) {
	c.ClientDisconnected(id)
}

// Lookup returns the current record for pair.
func (c *Coordinator) Lookup(ctx context.Context, pair string) (pricing.SpreadRecord, bool) {
	type result struct {
		rec pricing.SpreadRecord
		ok  bool
	}
	ch := make(chan result, 1)
	if !c.submit(func(context.Context) {
		rec, ok := c.hub.Query(pair)
		ch <- result{rec, ok}
	}) {
		return pricing.SpreadRecord{}, false
	}

	select {
	case r := <-ch:
		return r.rec, r.ok
	case <-ctx.Done():
	case <-c.done:
	}
	return pricing.SpreadRecord{}, false
}

// LookupAll returns every ready record.
func (c *Coordinator) LookupAll(ctx context.Context) []pricing.SpreadRecord {
	ch := make(chan []pricing.SpreadRecord, 1)
	if !c.submit(func(context.Context) { ch <- c.hub.QueryAll() }) {
		return nil
	}

	select {
	case recs := <-ch:
		return recs
	case <-ctx.Done():
	case <-c.done:
	}
	return nil
}

// Status reports feed and subscriber state.
func (c *Coordinator) Status() Status {
	return Status{
		ExchangeConnected: c.exchange.Connected(),
		OnChainReady:      c.onChain.Ready(),
		Markets:           c.onChain.Markets(),
		Clients:           int(c.clients.Load()),
	}
}
