// Package ui provides the Bubble Tea TUI for the spread monitor.
package ui

import (
	"time"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

// SpreadsMsg carries the records of one broadcast.
type SpreadsMsg struct {
	Records []domain.SpreadRecord
	At      time.Time
}

// StatusMsg reports feed and subscriber state.
type StatusMsg struct {
	ExchangeConnected bool
	OnChainReady      bool
	Markets           []string
	Clients           int
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}
