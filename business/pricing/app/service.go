package app

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
)

// SpreadService combines the price store with the fee schedule. It is not
// safe for concurrent use; the monitor's event loop owns it.
type SpreadService struct {
	store *domain.PriceStore
	pairs []domain.Pair
	fees  domain.Fees
	clock clockwork.Clock
}

// NewSpreadService creates a service over pairs. A nil clock uses real time.
func NewSpreadService(store *domain.PriceStore, pairs []domain.Pair, fees domain.Fees, clock clockwork.Clock) *SpreadService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SpreadService{
		store: store,
		pairs: pairs,
		fees:  fees,
		clock: clock,
	}
}

// Pairs returns the configured pairs in order.
func (s *SpreadService) Pairs() []domain.Pair { return s.pairs }

// Fees returns the fee schedule.
func (s *SpreadService) Fees() domain.Fees { return s.fees }

// ApplyExchangePrice stores an exchange price. It reports false for an
// invalid value or an unknown pair.
func (s *SpreadService) ApplyExchangePrice(pair string, price float64) bool {
	if !s.known(pair) {
		return false
	}
	return s.store.SetExchangePrice(pair, price)
}

// ApplyOnChain stores a cycle's observations and returns the ones that were
// rejected.
func (s *SpreadService) ApplyOnChain(obs []domain.Observation) (rejected []domain.Observation) {
	for _, o := range obs {
		if !s.known(o.Pair) || !s.store.SetOnChainPrice(o.Pair, o.Price) {
			rejected = append(rejected, o)
		}
	}
	return rejected
}

// Snapshot returns a record for every pair with both prices, in configured
// order. Pairs missing either side are omitted.
func (s *SpreadService) Snapshot() []domain.SpreadRecord {
	now := s.clock.Now()
	records := make([]domain.SpreadRecord, 0, len(s.pairs))
	for _, p := range s.pairs {
		if rec, ok := s.record(p.Name, now); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Record returns the current record for one pair.
func (s *SpreadService) Record(pair string) (domain.SpreadRecord, bool) {
	return s.record(pair, s.clock.Now())
}

func (s *SpreadService) record(pair string, now time.Time) (domain.SpreadRecord, bool) {
	ex, on, ok := s.store.Both(pair)
	if !ok {
		return domain.SpreadRecord{}, false
	}
	return domain.CalculateSpread(pair, ex, on, s.fees, now), true
}

func (s *SpreadService) known(pair string) bool {
	for _, p := range s.pairs {
		if p.Name == pair {
			return true
		}
	}
	return false
}
