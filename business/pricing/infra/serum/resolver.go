package serum

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/spread-monitor/business/pricing/app"
	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/solana"
)

const tracerName = "serum"

// AccountReader reads raw Solana accounts.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, key solana.PublicKey) (*solana.Account, error)
	GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*solana.Account, error)
}

// Resolver loads market metadata for configured pairs.
type Resolver struct {
	rpc    AccountReader
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewResolver creates a Resolver reading through rpc.
func NewResolver(rpc AccountReader, log logger.LoggerInterface) *Resolver {
	return &Resolver{
		rpc:    rpc,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

// Resolve loads the market account for pair, checks it is owned by the
// pair's program and reads both mints' decimals.
func (r *Resolver) Resolve(ctx context.Context, pair domain.Pair) (app.OrderBook, error) {
	ctx, span := r.tracer.Start(ctx, "serum.Resolve", trace.WithAttributes(
		attribute.String("pair", pair.Name),
		attribute.String("market", pair.MarketAddress),
	))
	defer span.End()

	m, err := r.resolve(ctx, pair)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r.logger.Info(ctx, "market resolved",
		"pair", pair.Name,
		"market", pair.MarketAddress,
		"bids", m.state.Bids.String(),
		"asks", m.state.Asks.String(),
		"base_decimals", m.baseDecimals,
		"quote_decimals", m.quoteDecimals,
	)
	return m, nil
}

func (r *Resolver) resolve(ctx context.Context, pair domain.Pair) (*Market, error) {
	address, err := solana.ParsePublicKey(pair.MarketAddress)
	if err != nil {
		return nil, err
	}
	program, err := solana.ParsePublicKey(pair.ProgramAddress)
	if err != nil {
		return nil, err
	}

	acc, err := r.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMarketResolveFailed, pair.Name)
	}
	if acc.Owner != program {
		return nil, apperror.New(apperror.CodeInvalidMarketOwner,
			apperror.WithContext(pair.Name+": owned by "+acc.Owner.String()+", want "+program.String()))
	}

	state, err := DecodeMarket(acc.Data)
	if err != nil {
		return nil, err
	}

	mints, err := r.rpc.GetMultipleAccounts(ctx, []solana.PublicKey{state.BaseMint, state.QuoteMint})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMarketResolveFailed, pair.Name)
	}
	var decimals [2]uint8
	for i, mint := range mints {
		if mint == nil {
			return nil, apperror.NotFound(apperror.CodeSolanaAccountMissing, "mint for "+pair.Name)
		}
		if decimals[i], err = DecodeMintDecimals(mint.Data); err != nil {
			return nil, err
		}
	}

	return NewMarket(MarketParams{
		Pair:          pair,
		Program:       program,
		State:         state,
		BaseDecimals:  decimals[0],
		QuoteDecimals: decimals[1],
	}, r.rpc), nil
}

// MarketParams describes a resolved market.
type MarketParams struct {
	Pair          domain.Pair
	Program       solana.PublicKey
	State         *MarketState
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// Market reads the top of book of one resolved market.
type Market struct {
	pair          domain.Pair
	program       solana.PublicKey
	state         *MarketState
	baseDecimals  uint8
	quoteDecimals uint8
	rpc           AccountReader

	priceScale decimal.Decimal
	sizeScale  decimal.Decimal
}

// NewMarket creates a Market from already decoded metadata.
func NewMarket(p MarketParams, rpc AccountReader) *Market {
	baseUnit := decimal.New(1, int32(p.BaseDecimals))
	quoteUnit := decimal.New(1, int32(p.QuoteDecimals))
	baseLot := fromUint64(p.State.BaseLotSize)
	quoteLot := fromUint64(p.State.QuoteLotSize)

	return &Market{
		pair:          p.Pair,
		program:       p.Program,
		state:         p.State,
		baseDecimals:  p.BaseDecimals,
		quoteDecimals: p.QuoteDecimals,
		rpc:           rpc,
		priceScale:    quoteLot.Mul(baseUnit).Div(baseLot.Mul(quoteUnit)),
		sizeScale:     baseLot.Div(baseUnit),
	}
}

// Pair returns the pair this market trades.
func (m *Market) Pair() domain.Pair { return m.pair }

// PriceFromLots converts a price in lots to quote units per base unit.
func (m *Market) PriceFromLots(lots uint64) decimal.Decimal {
	return fromUint64(lots).Mul(m.priceScale)
}

// SizeFromLots converts a quantity in lots to base units.
func (m *Market) SizeFromLots(lots uint64) decimal.Decimal {
	return fromUint64(lots).Mul(m.sizeScale)
}

// TopOfBook fetches both book sides in one request and returns their best
// levels. An empty side is left nil.
func (m *Market) TopOfBook(ctx context.Context) (domain.TopOfBook, error) {
	accs, err := m.rpc.GetMultipleAccounts(ctx, []solana.PublicKey{m.state.Bids, m.state.Asks})
	if err != nil {
		return domain.TopOfBook{}, apperror.Wrap(err, apperror.CodeOrderbookFetchFailed, m.pair.Name)
	}

	var book domain.TopOfBook
	for i, acc := range accs {
		side := "bids"
		if i == 1 {
			side = "asks"
		}
		if acc == nil {
			return domain.TopOfBook{}, apperror.NotFound(apperror.CodeSolanaAccountMissing, m.pair.Name+" "+side)
		}
		if acc.Owner != m.program {
			return domain.TopOfBook{}, apperror.New(apperror.CodeInvalidMarketOwner,
				apperror.WithContext(m.pair.Name+" "+side+" owned by "+acc.Owner.String()))
		}

		slab, err := DecodeSlab(acc.Data)
		if err != nil {
			return domain.TopOfBook{}, apperror.Wrap(err, apperror.CodeInvalidSlab, m.pair.Name+" "+side)
		}
		best, ok := slab.Best()
		if !ok {
			continue
		}
		lvl := &domain.Level{
			Price:    m.PriceFromLots(best.PriceLots),
			Quantity: m.SizeFromLots(best.QuantityLots),
		}
		if i == 0 {
			book.Bid = lvl
		} else {
			book.Ask = lvl
		}
	}
	return book, nil
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
