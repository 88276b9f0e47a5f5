// Package binance streams 24h rolling tickers from the Binance combined
// stream endpoint.
package binance

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

// WSResponse is a reply to a control request on the socket.
type WSResponse struct {
	Result json.RawMessage `json:"result"`
	ID     int64           `json:"id"`
}

// EventTypeTicker is the "e" field of a 24hr ticker payload.
const EventTypeTicker = "24hrTicker"

// StreamEvent is the combined stream wrapper.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// TickerEvent is the 24hr rolling window ticker.
// Stream: <symbol>@ticker
type TickerEvent struct {
	EventType          string `json:"e"` // "24hrTicker"
	EventTime          int64  `json:"E"` // ms
	Symbol             string `json:"s"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	LastPrice          string `json:"c"`
	LastQty            string `json:"Q"`
	BidPrice           string `json:"b"`
	AskPrice           string `json:"a"`
	OpenPrice          string `json:"o"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
	Volume             string `json:"v"`
	QuoteVolume        string `json:"q"`
}

// Ticker converts the event to the domain ticker for stream.
func (e *TickerEvent) Ticker(stream string) domain.Ticker {
	t := domain.Ticker{
		Stream:    stream,
		Symbol:    e.Symbol,
		LastPrice: e.LastPrice,
	}
	if e.EventTime > 0 {
		t.EventTime = time.UnixMilli(e.EventTime)
	}
	return t
}

// TickerStream returns the ticker stream name for a symbol.
func TickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@ticker"
}
