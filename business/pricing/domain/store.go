package domain

import "math"

// PriceStore holds the last known price per pair per source. Entries appear
// on the first valid observation and are never removed.
//
// PriceStore is not safe for concurrent use; it is owned by a single
// goroutine.
type PriceStore struct {
	exchange map[string]float64
	onChain  map[string]float64
}

// NewPriceStore creates an empty store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		exchange: make(map[string]float64),
		onChain:  make(map[string]float64),
	}
}

// IsValidPrice reports whether v is positive and finite.
func IsValidPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// SetExchangePrice records the latest exchange price. Invalid values are
// not stored and false is returned.
func (s *PriceStore) SetExchangePrice(pair string, v float64) bool {
	if !IsValidPrice(v) {
		return false
	}
	s.exchange[pair] = v
	return true
}

// SetOnChainPrice records the latest on-chain price. Invalid values are not
// stored and false is returned.
func (s *PriceStore) SetOnChainPrice(pair string, v float64) bool {
	if !IsValidPrice(v) {
		return false
	}
	s.onChain[pair] = v
	return true
}

// ExchangePrice returns the last exchange price for pair.
func (s *PriceStore) ExchangePrice(pair string) (float64, bool) {
	v, ok := s.exchange[pair]
	return v, ok
}

// OnChainPrice returns the last on-chain price for pair.
func (s *PriceStore) OnChainPrice(pair string) (float64, bool) {
	v, ok := s.onChain[pair]
	return v, ok
}

// Both returns both prices when present.
func (s *PriceStore) Both(pair string) (exchange, onChain float64, ok bool) {
	exchange, okEx := s.exchange[pair]
	onChain, okOn := s.onChain[pair]
	return exchange, onChain, okEx && okOn
}
