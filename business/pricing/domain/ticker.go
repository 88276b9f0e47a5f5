package domain

import (
	"strings"
	"time"
)

// Ticker is one 24h rolling ticker update from the exchange.
type Ticker struct {
	Stream    string // e.g. "btcusdc@ticker"
	Symbol    string // e.g. "BTCUSDC"
	LastPrice string
	EventTime time.Time
}

// StreamSymbol returns the stream name before "@", or "" when the stream
// carries no symbol.
func (t Ticker) StreamSymbol() string {
	if i := strings.IndexByte(t.Stream, '@'); i > 0 {
		return t.Stream[:i]
	}
	return ""
}
