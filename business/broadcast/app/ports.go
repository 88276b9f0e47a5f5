// Package app contains the subscription hub and its ports.
package app

import (
	"context"

	pricing "github.com/fd1az/spread-monitor/business/pricing/domain"
)

// Client is one subscriber connection. Send must not block: it reports
// false when the message was dropped because the client is closed or its
// buffer is full.
type Client interface {
	ID() string
	Send(msg []byte) bool
}

// SpreadSource provides current spread records.
type SpreadSource interface {
	Snapshot() []pricing.SpreadRecord
	Record(pair string) (pricing.SpreadRecord, bool)
}

// Events receives connection lifecycle and query calls from a transport.
// Implementations serialize them with every other state change.
type Events interface {
	ClientConnected(c Client)
	ClientMessage(id string, raw []byte)
	ClientDisconnected(id string)
	Lookup(ctx context.Context, pair string) (pricing.SpreadRecord, bool)
	LookupAll(ctx context.Context) []pricing.SpreadRecord
}

// Transport accepts subscriber connections and reports them to Events.
type Transport interface {
	Start(ctx context.Context, events Events) error
	Shutdown(ctx context.Context) error
	Addr() string
}
