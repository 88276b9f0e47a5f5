package app

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

type fakeStream struct {
	handler   TickerHandler
	started   int
	closed    bool
	connected bool
}

func (s *fakeStream) OnTicker(h TickerHandler)    { s.handler = h }
func (s *fakeStream) Start(context.Context) error { s.started++; return nil }
func (s *fakeStream) Close() error                { s.closed = true; return nil }
func (s *fakeStream) IsConnected() bool           { return s.connected }

func TestExchangeFeed_ForwardsMatchingTickers(t *testing.T) {
	stream := &fakeStream{}
	feed, err := NewExchangeFeed(stream, testPairs, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	sink := newRecordingSink()
	ctx := context.Background()
	if err := feed.Start(ctx, sink); err != nil {
		t.Fatal(err)
	}
	if err := feed.Start(ctx, sink); err != nil {
		t.Fatal(err)
	}
	if stream.started != 1 {
		t.Errorf("stream started %d times, want 1", stream.started)
	}

	tickers := []domain.Ticker{
		{Stream: "btcusdc@ticker", Symbol: "BTCUSDC", LastPrice: "50000.00"},
		{Stream: "ETHUSDC@ticker", Symbol: "ETHUSDC", LastPrice: "3000.5"},
		{Stream: "", Symbol: "solusdc", LastPrice: "150"},         // falls back to payload symbol
		{Stream: "dogeusdc@ticker", Symbol: "DOGEUSDC", LastPrice: "1"}, // unknown
		{Stream: "btcusdc@ticker", Symbol: "BTCUSDC", LastPrice: "abc"},
		{Stream: "btcusdc@ticker", Symbol: "BTCUSDC", LastPrice: "-1"},
		{Stream: "btcusdc@ticker", Symbol: "BTCUSDC", LastPrice: "0"},
		{Stream: "btcusdc@ticker", Symbol: "BTCUSDC", LastPrice: "50010"},
	}
	for _, tk := range tickers {
		stream.handler(ctx, tk)
	}

	want := []exchangeUpdate{
		{"BTC/USDC", 50000},
		{"ETH/USDC", 3000.5},
		{"SOL/USDC", 150},
		{"BTC/USDC", 50010},
	}
	for i, w := range want {
		select {
		case got := <-sink.exchange:
			if got != w {
				t.Errorf("update %d = %+v, want %+v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing update %d", i)
		}
	}
	select {
	case got := <-sink.exchange:
		t.Errorf("unexpected update %+v", got)
	default:
	}

	stream.connected = true
	if !feed.Connected() {
		t.Error("Connected() should follow the stream")
	}
	if err := feed.Stop(); err != nil || !stream.closed {
		t.Errorf("Stop() err=%v closed=%v", err, stream.closed)
	}
}
