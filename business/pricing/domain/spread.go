package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default fee model.
var (
	DefaultExchangeFee     = decimal.RequireFromString("0.001")
	DefaultOnChainFee      = decimal.RequireFromString("0.003")
	DefaultProfitThreshold = decimal.RequireFromString("0.5") // percent
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var hundred = decimal.NewFromInt(100)

// Fees are the proportional fee rates applied to each side before comparing.
type Fees struct {
	Exchange decimal.Decimal
	OnChain  decimal.Decimal

	// ProfitThreshold is informational. Nothing filters on it.
	ProfitThreshold decimal.Decimal
}

// DefaultFees returns the default fee model.
func DefaultFees() Fees {
	return Fees{
		Exchange:        DefaultExchangeFee,
		OnChain:         DefaultOnChainFee,
		ProfitThreshold: DefaultProfitThreshold,
	}
}

// SpreadRecord is the derived, fee-adjusted view of one pair.
type SpreadRecord struct {
	ExchangePrice     float64 `json:"binancePrice"`
	OnChainPrice      float64 `json:"serumPrice"`
	PriceDifference   float64 `json:"priceDifference"`
	PercentDifference string  `json:"percentDifference"`
	Pair              string  `json:"pair"`
	Timestamp         string  `json:"timestamp"`
}

// SpreadDirection indicates which venue is cheaper after fees.
type SpreadDirection string

const (
	SpreadExchangeHigher SpreadDirection = "EXCHANGE_HIGHER" // buy on-chain, sell on exchange
	SpreadOnChainHigher  SpreadDirection = "ONCHAIN_HIGHER"  // buy on exchange, sell on-chain
	SpreadNone           SpreadDirection = "NONE"
)

// CalculateSpread computes the fee-adjusted spread:
//
//	effEx = ex * (1 - fees.Exchange)
//	effOn = on * (1 - fees.OnChain)
//	diff  = effEx - effOn
//	pct   = diff / effOn * 100, two decimals
func CalculateSpread(pair string, exchangePrice, onChainPrice float64, fees Fees, now time.Time) SpreadRecord {
	ex := decimal.NewFromFloat(exchangePrice)
	on := decimal.NewFromFloat(onChainPrice)

	effEx := ex.Mul(decimal.NewFromInt(1).Sub(fees.Exchange))
	effOn := on.Mul(decimal.NewFromInt(1).Sub(fees.OnChain))
	diff := effEx.Sub(effOn)

	pct := decimal.Zero
	if !effOn.IsZero() {
		pct = diff.Div(effOn).Mul(hundred)
	}

	return SpreadRecord{
		ExchangePrice:     exchangePrice,
		OnChainPrice:      onChainPrice,
		PriceDifference:   diff.InexactFloat64(),
		PercentDifference: pct.StringFixed(2),
		Pair:              pair,
		Timestamp:         now.UTC().Format(TimestampLayout),
	}
}

// Percent parses PercentDifference back into a decimal.
func (r SpreadRecord) Percent() decimal.Decimal {
	d, err := decimal.NewFromString(r.PercentDifference)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Direction classifies the record by the sign of its difference.
func (r SpreadRecord) Direction() SpreadDirection {
	switch {
	case r.PriceDifference > 0:
		return SpreadExchangeHigher
	case r.PriceDifference < 0:
		return SpreadOnChainHigher
	default:
		return SpreadNone
	}
}

// AboveThreshold reports whether |percent| meets threshold.
func (r SpreadRecord) AboveThreshold(threshold decimal.Decimal) bool {
	return r.Percent().Abs().GreaterThanOrEqual(threshold)
}
