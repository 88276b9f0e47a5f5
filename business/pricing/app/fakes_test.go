package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

var testPairs = []domain.Pair{
	{Name: "BTC/USDC", ExchangeSymbol: "BTCUSDC"},
	{Name: "ETH/USDC", ExchangeSymbol: "ETHUSDC"},
	{Name: "SOL/USDC", ExchangeSymbol: "SOLUSDC"},
}

var errFetch = errors.New("rpc unavailable")

// fakeBook returns a fixed top of book, or err when set.
type fakeBook struct {
	pair domain.Pair

	mu  sync.Mutex
	bid string
	ask string
	err error
}

func (b *fakeBook) Pair() domain.Pair { return b.pair }

func (b *fakeBook) set(bid, ask string, err error) {
	b.mu.Lock()
	b.bid, b.ask, b.err = bid, ask, err
	b.mu.Unlock()
}

func (b *fakeBook) TopOfBook(context.Context) (domain.TopOfBook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return domain.TopOfBook{}, b.err
	}
	var top domain.TopOfBook
	if b.bid != "" {
		top.Bid = &domain.Level{Price: decimal.RequireFromString(b.bid)}
	}
	if b.ask != "" {
		top.Ask = &domain.Level{Price: decimal.RequireFromString(b.ask)}
	}
	return top, nil
}

// fakeResolver resolves pairs to books. A pair listed in failing fails
// until the number of its attempts exceeds the listed count.
type fakeResolver struct {
	books   map[string]*fakeBook
	failing map[string]int

	mu       sync.Mutex
	attempts map[string]int
	calls    atomic.Int32
}

func newFakeResolver(pairs []domain.Pair) *fakeResolver {
	r := &fakeResolver{
		books:    make(map[string]*fakeBook),
		failing:  make(map[string]int),
		attempts: make(map[string]int),
	}
	for _, p := range pairs {
		r.books[p.Name] = &fakeBook{pair: p}
	}
	return r
}

func (r *fakeResolver) Resolve(_ context.Context, pair domain.Pair) (OrderBook, error) {
	r.calls.Add(1)

	r.mu.Lock()
	r.attempts[pair.Name]++
	n := r.attempts[pair.Name]
	r.mu.Unlock()

	if n <= r.failing[pair.Name] {
		return nil, errors.New("market account not found")
	}
	return r.books[pair.Name], nil
}

type exchangeUpdate struct {
	pair  string
	price float64
}

type recordingSink struct {
	exchange chan exchangeUpdate
	cycles   chan []domain.Observation
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		exchange: make(chan exchangeUpdate, 16),
		cycles:   make(chan []domain.Observation, 16),
	}
}

func (s *recordingSink) ExchangePrice(_ context.Context, pair string, price float64) {
	s.exchange <- exchangeUpdate{pair: pair, price: price}
}

func (s *recordingSink) OnChainCycle(_ context.Context, obs []domain.Observation) {
	s.cycles <- obs
}
