// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

// SpreadsComponent renders the latest record per pair.
type SpreadsComponent struct {
	rows      map[string]domain.SpreadRecord
	order     []string
	threshold decimal.Decimal
}

// NewSpreadsComponent creates the table. Rows whose |percent| reaches
// threshold are highlighted.
func NewSpreadsComponent(threshold decimal.Decimal) *SpreadsComponent {
	return &SpreadsComponent{
		rows:      make(map[string]domain.SpreadRecord),
		threshold: threshold,
	}
}

// Update merges records into the table. Pairs keep the order they first appeared in.
func (s *SpreadsComponent) Update(records []domain.SpreadRecord) {
	for _, r := range records {
		if _, ok := s.rows[r.Pair]; !ok {
			s.order = append(s.order, r.Pair)
		}
		s.rows[r.Pair] = r
	}
}

// Len returns the number of pairs shown.
func (s *SpreadsComponent) Len() int {
	return len(s.order)
}

// Row returns the latest record for pair.
func (s *SpreadsComponent) Row(pair string) (domain.SpreadRecord, bool) {
	r, ok := s.rows[pair]
	return r, ok
}

// Highlighted reports whether pair is at or above the threshold.
func (s *SpreadsComponent) Highlighted(pair string) bool {
	r, ok := s.rows[pair]
	return ok && r.AboveThreshold(s.threshold)
}

// View renders the spreads table.
func (s *SpreadsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	hotStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("SPREADS (threshold %s%%)", s.threshold.StringFixed(2))))
	b.WriteString("\n\n")

	if len(s.order) == 0 {
		b.WriteString(dimStyle.Render("  Waiting for price data..."))
		return b.String()
	}

	fmt.Fprintf(&b, "  %-10s  %14s  %14s  %12s  %8s  %s\n",
		"Pair", "Binance", "Serum", "Difference", "Pct", "Updated")
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 78)) + "\n")

	for _, pair := range s.order {
		r := s.rows[pair]

		diffStyle := positiveStyle
		if r.PriceDifference < 0 {
			diffStyle = negativeStyle
		}
		pct := r.PercentDifference + "%"
		if r.AboveThreshold(s.threshold) {
			pct = hotStyle.Render(fmt.Sprintf("%8s", pct))
		} else {
			pct = diffStyle.Render(fmt.Sprintf("%8s", pct))
		}

		fmt.Fprintf(&b, "  %-10s  %14s  %14s  %s  %s  %s\n",
			r.Pair,
			formatPrice(r.ExchangePrice),
			formatPrice(r.OnChainPrice),
			diffStyle.Render(fmt.Sprintf("%12s", fmt.Sprintf("%+.4f", r.PriceDifference))),
			pct,
			dimStyle.Render(r.Timestamp),
		)
	}

	return b.String()
}

func formatPrice(p float64) string {
	return "$" + decimal.NewFromFloat(p).StringFixed(4)
}
