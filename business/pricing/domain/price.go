package domain

import "github.com/shopspring/decimal"

// Level is a single order book price level.
type Level struct {
	Price    decimal.Decimal // quote per base
	Quantity decimal.Decimal // base units
}

// TopOfBook is the best bid and ask of a market. Either side may be nil when
// the book side is empty.
type TopOfBook struct {
	Bid *Level
	Ask *Level
}

// MidPrice returns (bid+ask)/2. ok is false when either side is empty.
func (t TopOfBook) MidPrice() (mid decimal.Decimal, ok bool) {
	if t.Bid == nil || t.Ask == nil {
		return decimal.Zero, false
	}
	return t.Bid.Price.Add(t.Ask.Price).Div(decimal.NewFromInt(2)), true
}

// Observation is one accepted on-chain price for a pair.
type Observation struct {
	Pair  string
	Price float64
}
