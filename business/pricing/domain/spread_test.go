package domain

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 3, 9, 12, 30, 45, 123_000_000, time.UTC)

func noFees() Fees {
	return Fees{Exchange: decimal.Zero, OnChain: decimal.Zero}
}

func TestCalculateSpread(t *testing.T) {
	tests := []struct {
		name        string
		exchange    float64
		onChain     float64
		fees        Fees
		wantDiff    float64
		wantPercent string
		wantDir     SpreadDirection
	}{
		{
			name:        "default_fees_reference_example",
			exchange:    50000,
			onChain:     49900,
			fees:        DefaultFees(),
			wantDiff:    199.7, // 49950 - 49750.3
			wantPercent: "0.40",
			wantDir:     SpreadExchangeHigher,
		},
		{
			name:        "equal_prices_fee_asymmetry",
			exchange:    100,
			onChain:     100,
			fees:        DefaultFees(),
			wantDiff:    0.2, // 99.9 - 99.7
			wantPercent: "0.20",
			wantDir:     SpreadExchangeHigher,
		},
		{
			name:        "no_fees_positive",
			exchange:    101,
			onChain:     100,
			fees:        noFees(),
			wantDiff:    1,
			wantPercent: "1.00",
			wantDir:     SpreadExchangeHigher,
		},
		{
			name:        "no_fees_negative",
			exchange:    100,
			onChain:     102,
			fees:        noFees(),
			wantDiff:    -2,
			wantPercent: "-1.96",
			wantDir:     SpreadOnChainHigher,
		},
		{
			name:        "no_fees_equal",
			exchange:    3400,
			onChain:     3400,
			fees:        noFees(),
			wantDiff:    0,
			wantPercent: "0.00",
			wantDir:     SpreadNone,
		},
		{
			name:        "rounds_half_away_from_zero",
			exchange:    100.125,
			onChain:     100,
			fees:        noFees(),
			wantDiff:    0.125,
			wantPercent: "0.13",
			wantDir:     SpreadExchangeHigher,
		},
		{
			name:        "rounds_negative_half_away_from_zero",
			exchange:    99.875,
			onChain:     100,
			fees:        noFees(),
			wantDiff:    -0.125,
			wantPercent: "-0.13",
			wantDir:     SpreadOnChainHigher,
		},
		{
			name:        "small_prices",
			exchange:    0.00101,
			onChain:     0.001,
			fees:        noFees(),
			wantDiff:    0.00001,
			wantPercent: "1.00",
			wantDir:     SpreadExchangeHigher,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := CalculateSpread("BTC/USDC", tt.exchange, tt.onChain, tt.fees, fixedNow)

			if rec.Pair != "BTC/USDC" {
				t.Errorf("Pair = %q", rec.Pair)
			}
			if rec.ExchangePrice != tt.exchange || rec.OnChainPrice != tt.onChain {
				t.Errorf("prices = %v/%v, want %v/%v", rec.ExchangePrice, rec.OnChainPrice, tt.exchange, tt.onChain)
			}
			if math.Abs(rec.PriceDifference-tt.wantDiff) > 1e-9 {
				t.Errorf("PriceDifference = %v, want %v", rec.PriceDifference, tt.wantDiff)
			}
			if rec.PercentDifference != tt.wantPercent {
				t.Errorf("PercentDifference = %q, want %q", rec.PercentDifference, tt.wantPercent)
			}
			if rec.Direction() != tt.wantDir {
				t.Errorf("Direction = %v, want %v", rec.Direction(), tt.wantDir)
			}
		})
	}
}

func TestCalculateSpread_MatchesFormula(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fees := DefaultFees()

	for i := 0; i < 500; i++ {
		ex := 0.01 + rng.Float64()*100000
		on := 0.01 + rng.Float64()*100000

		rec := CalculateSpread("X/Y", ex, on, fees, fixedNow)

		effEx := ex * (1 - 0.001)
		effOn := on * (1 - 0.003)
		want := effEx - effOn
		if math.Abs(rec.PriceDifference-want) > 1e-6*math.Max(1, math.Abs(want)) {
			t.Fatalf("ex=%v on=%v: diff=%v want %v", ex, on, rec.PriceDifference, want)
		}

		wantPct := decimal.NewFromFloat(want / effOn * 100).Round(2)
		gotPct := decimal.RequireFromString(rec.PercentDifference)
		if gotPct.Sub(wantPct).Abs().GreaterThan(decimal.RequireFromString("0.01")) {
			t.Fatalf("ex=%v on=%v: pct=%s want ~%s", ex, on, gotPct, wantPct)
		}
	}
}

func TestSpreadRecord_JSONShape(t *testing.T) {
	rec := CalculateSpread("BTC/USDC", 50000, 49900, DefaultFees(), fixedNow)

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"binancePrice", "serumPrice", "priceDifference"} {
		if _, ok := m[key].(float64); !ok {
			t.Errorf("%s should be a JSON number, got %T", key, m[key])
		}
	}
	if m["percentDifference"] != "0.40" {
		t.Errorf("percentDifference = %v", m["percentDifference"])
	}
	if m["pair"] != "BTC/USDC" {
		t.Errorf("pair = %v", m["pair"])
	}
	if m["timestamp"] != "2024-03-09T12:30:45.123Z" {
		t.Errorf("timestamp = %v", m["timestamp"])
	}
	if len(m) != 6 {
		t.Errorf("expected 6 fields, got %d: %v", len(m), m)
	}
}

func TestSpreadRecord_AboveThreshold(t *testing.T) {
	threshold := DefaultProfitThreshold

	tests := []struct {
		pct  string
		want bool
	}{
		{"0.40", false},
		{"0.50", true},
		{"-0.75", true},
		{"garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.pct, func(t *testing.T) {
			rec := SpreadRecord{PercentDifference: tt.pct}
			if got := rec.AboveThreshold(threshold); got != tt.want {
				t.Errorf("AboveThreshold(%s) = %v, want %v", tt.pct, got, tt.want)
			}
		})
	}
}
