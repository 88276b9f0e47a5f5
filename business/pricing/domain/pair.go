// Package domain contains the core domain types for the pricing context.
package domain

import "strings"

// Pair is one monitored market: an exchange ticker symbol and the on-chain
// market that trades the same assets. Name is the identity.
type Pair struct {
	Name           string // e.g. "BTC/USDC"
	MarketAddress  string // Serum market account
	ProgramAddress string // program that must own the market account
	ExchangeSymbol string // e.g. "BTCUSDC"
}

// TickerStream returns the exchange stream name for the pair.
func (p Pair) TickerStream() string {
	return strings.ToLower(p.ExchangeSymbol) + "@ticker"
}

// MatchesSymbol reports whether sym names this pair's exchange symbol,
// ignoring case.
func (p Pair) MatchesSymbol(sym string) bool {
	return sym != "" && strings.EqualFold(p.ExchangeSymbol, sym)
}
