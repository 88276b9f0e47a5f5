package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/spread-monitor/business/broadcast/domain"
	pricing "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/logger"
)

const meterName = "broadcast"

type hubMetrics struct {
	clients    metric.Int64UpDownCounter
	broadcasts metric.Int64Counter
	messages   metric.Int64Counter
	dropped    metric.Int64Counter
	badInput   metric.Int64Counter
}

type subscriber struct {
	client Client
	all    bool
	pairs  map[string]struct{}
}

func (s *subscriber) subscribed() bool { return s.all || len(s.pairs) > 0 }

func (s *subscriber) add(t domain.Topic) {
	if t.All {
		s.all = true
		return
	}
	s.pairs[t.Pair] = struct{}{}
}

func (s *subscriber) matches(pair string) bool {
	if s.all {
		return true
	}
	_, ok := s.pairs[pair]
	return ok
}

// Hub tracks subscribers and their topics and fans spread snapshots out to
// them. It is not safe for concurrent use; the monitor's event loop owns it.
type Hub struct {
	source  SpreadSource
	clients map[string]*subscriber
	logger  logger.LoggerInterface
	metrics *hubMetrics
}

// NewHub creates a hub reading records from source.
func NewHub(source SpreadSource, log logger.LoggerInterface) (*Hub, error) {
	h := &Hub{
		source:  source,
		clients: make(map[string]*subscriber),
		logger:  log,
	}
	if err := h.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return h, nil
}

func (h *Hub) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	h.metrics = &hubMetrics{}

	h.metrics.clients, err = meter.Int64UpDownCounter(
		"hub_clients",
		metric.WithDescription("Connected subscribers"),
	)
	if err != nil {
		return err
	}

	h.metrics.broadcasts, err = meter.Int64Counter(
		"hub_broadcast_cycles_total",
		metric.WithDescription("Broadcast cycles run"),
	)
	if err != nil {
		return err
	}

	h.metrics.messages, err = meter.Int64Counter(
		"hub_messages_sent_total",
		metric.WithDescription("Messages queued to subscribers"),
	)
	if err != nil {
		return err
	}

	h.metrics.dropped, err = meter.Int64Counter(
		"hub_messages_dropped_total",
		metric.WithDescription("Messages skipped for closed or slow subscribers"),
	)
	if err != nil {
		return err
	}

	h.metrics.badInput, err = meter.Int64Counter(
		"hub_bad_requests_total",
		metric.WithDescription("Malformed or unknown client requests"),
	)
	return err
}

// OnConnect registers a client with no subscriptions.
func (h *Hub) OnConnect(ctx context.Context, c Client) {
	if _, ok := h.clients[c.ID()]; ok {
		return
	}
	h.clients[c.ID()] = &subscriber{client: c, pairs: make(map[string]struct{})}
	h.metrics.clients.Add(ctx, 1)
	h.logger.Debug(ctx, "client connected", "client", c.ID(), "clients", len(h.clients))
}

// OnDisconnect removes a client. Unknown ids are ignored.
func (h *Hub) OnDisconnect(ctx context.Context, id string) {
	if _, ok := h.clients[id]; !ok {
		return
	}
	delete(h.clients, id)
	h.metrics.clients.Add(ctx, -1)
	h.logger.Debug(ctx, "client disconnected", "client", id, "clients", len(h.clients))
}

// Subscribe adds topics to a registered client. Subscriptions accumulate.
func (h *Hub) Subscribe(ctx context.Context, id string, topics ...domain.Topic) {
	sub, ok := h.clients[id]
	if !ok {
		return
	}
	for _, t := range topics {
		sub.add(t)
	}
}

// OnMessage handles one inbound client message. Bad input is logged and
// otherwise ignored; the connection stays open and nothing is sent back.
func (h *Hub) OnMessage(ctx context.Context, id string, raw []byte) {
	sub, ok := h.clients[id]
	if !ok {
		return
	}

	req, err := domain.ParseRequest(raw)
	if err != nil {
		h.metrics.badInput.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "malformed")))
		h.logger.Warn(ctx, "malformed client message", "client", id, "error", err)
		return
	}

	switch req.Method {
	case domain.MethodSubscribe:
		for _, p := range req.Params {
			t, ok := domain.ParseTopic(p)
			if !ok {
				h.logger.Debug(ctx, "ignoring unknown topic", "client", id, "topic", p)
				continue
			}
			sub.add(t)
		}
		h.logger.Debug(ctx, "client subscribed", "client", id, "topics", req.Params)

	case domain.MethodSnapshot:
		for _, p := range req.Params {
			t, ok := domain.ParseTopic(p)
			if !ok || t.All {
				continue
			}
			rec, ok := h.source.Record(t.Pair)
			if !ok {
				continue
			}
			h.send(ctx, sub, domain.Envelope{Type: domain.EnvelopeSingle, Data: rec})
		}

	default:
		h.metrics.badInput.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unknown_method")))
		h.logger.Debug(ctx, "ignoring unknown method", "client", id, "method", req.Method)
	}
}

// BroadcastCycle sends every subscribed client the current records that
// match its topics. Clients with no subscriptions, or no matching records,
// get nothing. It returns the number of messages queued.
func (h *Hub) BroadcastCycle(ctx context.Context) int {
	h.metrics.broadcasts.Add(ctx, 1)

	records := h.source.Snapshot()
	if len(records) == 0 || len(h.clients) == 0 {
		return 0
	}

	// wildcard subscribers share one encoding
	var everything []byte
	sent := 0
	for _, id := range h.clientIDs() {
		sub := h.clients[id]
		if !sub.subscribed() {
			continue
		}

		if sub.all {
			if everything == nil {
				var err error
				if everything, err = encode(domain.EnvelopeAll, records); err != nil {
					h.logger.Error(ctx, "encode broadcast", "error", err)
					return sent
				}
			}
			if h.deliver(ctx, sub, everything) {
				sent++
			}
			continue
		}

		matched := make([]pricing.SpreadRecord, 0, len(sub.pairs))
		for _, r := range records {
			if sub.matches(r.Pair) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if h.send(ctx, sub, domain.Envelope{Type: domain.EnvelopeAll, Data: matched}) {
			sent++
		}
	}
	return sent
}

// Query returns the current record for one pair.
func (h *Hub) Query(pair string) (pricing.SpreadRecord, bool) {
	return h.source.Record(pair)
}

// QueryAll returns every ready record.
func (h *Hub) QueryAll() []pricing.SpreadRecord {
	return h.source.Snapshot()
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int { return len(h.clients) }

func (h *Hub) clientIDs() []string {
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) send(ctx context.Context, sub *subscriber, env domain.Envelope) bool {
	msg, err := json.Marshal(env)
	if err != nil {
		h.logger.Error(ctx, "encode message", "type", env.Type, "error", err)
		return false
	}
	return h.deliver(ctx, sub, msg)
}

func (h *Hub) deliver(ctx context.Context, sub *subscriber, msg []byte) bool {
	if !sub.client.Send(msg) {
		h.metrics.dropped.Add(ctx, 1)
		h.logger.Debug(ctx, "message dropped", "client", sub.client.ID())
		return false
	}
	h.metrics.messages.Add(ctx, 1)
	return true
}

func encode(typ string, records []pricing.SpreadRecord) ([]byte, error) {
	return json.Marshal(domain.Envelope{Type: typ, Data: records})
}
