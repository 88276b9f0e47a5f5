package serum

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

var solPair = domain.Pair{
	Name:           "SOL/USDC",
	MarketAddress:  marketKey.String(),
	ProgramAddress: program.String(),
	ExchangeSymbol: "SOLUSDC",
}

func TestDecodeMarket(t *testing.T) {
	m, err := DecodeMarket(marketData(FlagInitialized|FlagMarket, testBaseLot, testQuoteLot))
	require.NoError(t, err)

	assert.Equal(t, marketKey, m.OwnAddress)
	assert.Equal(t, baseMint, m.BaseMint)
	assert.Equal(t, quoteMint, m.QuoteMint)
	assert.Equal(t, bidsKey, m.Bids)
	assert.Equal(t, asksKey, m.Asks)
	assert.Equal(t, uint64(testBaseLot), m.BaseLotSize)
	assert.Equal(t, uint64(testQuoteLot), m.QuoteLotSize)
}

func TestDecodeMarket_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", make([]byte, 100)},
		{"not a market", marketData(FlagInitialized|FlagOpenOrders, testBaseLot, testQuoteLot)},
		{"uninitialized", marketData(FlagMarket, testBaseLot, testQuoteLot)},
		{"zero lot", marketData(FlagInitialized|FlagMarket, 0, testQuoteLot)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMarket(tt.data)
			assert.Equal(t, apperror.CodeInvalidMarketAccount, apperror.GetCode(err))
		})
	}
}

func TestDecodeSlab_BestLevels(t *testing.T) {
	bids, err := DecodeSlab(slabData(FlagBids, 0,
		leaf(150100, 10), inner(), leaf(150250, 25), leaf(149000, 5)))
	require.NoError(t, err)
	assert.True(t, bids.IsBids())
	assert.Len(t, bids.Orders, 3)

	best, ok := bids.Best()
	require.True(t, ok)
	assert.Equal(t, uint64(150250), best.PriceLots)
	assert.Equal(t, uint64(25), best.QuantityLots)

	asks, err := DecodeSlab(slabData(FlagAsks, 0, leaf(150400, 1), leaf(150300, 2)))
	require.NoError(t, err)
	assert.False(t, asks.IsBids())

	best, ok = asks.Best()
	require.True(t, ok)
	assert.Equal(t, uint64(150300), best.PriceLots)
}

func TestDecodeSlab_Edges(t *testing.T) {
	empty, err := DecodeSlab(slabData(FlagBids, 0))
	require.NoError(t, err)
	_, ok := empty.Best()
	assert.False(t, ok)

	// bump index beyond the buffer is clamped to what the account holds
	over, err := DecodeSlab(slabData(FlagAsks, 50, leaf(100, 1)))
	require.NoError(t, err)
	assert.Len(t, over.Orders, 1)

	_, err = DecodeSlab(make([]byte, 20))
	assert.Equal(t, apperror.CodeInvalidSlab, apperror.GetCode(err))

	_, err = DecodeSlab(slabData(FlagEventQueue, 0))
	assert.Equal(t, apperror.CodeInvalidSlab, apperror.GetCode(err))
}

func TestDecodeMintDecimals(t *testing.T) {
	d, err := DecodeMintDecimals(mintData(9))
	require.NoError(t, err)
	assert.Equal(t, uint8(9), d)

	_, err = DecodeMintDecimals(make([]byte, 10))
	assert.Error(t, err)
}

func seededRPC() *fakeRPC {
	rpc := newFakeRPC()
	rpc.put(marketKey, program, marketData(FlagInitialized|FlagMarket, testBaseLot, testQuoteLot))
	rpc.put(baseMint, program, mintData(9))
	rpc.put(quoteMint, program, mintData(6))
	rpc.put(bidsKey, program, slabData(FlagBids, 0, leaf(150100, 10), leaf(150250, 25)))
	rpc.put(asksKey, program, slabData(FlagAsks, 0, leaf(150400, 1), leaf(150300, 2)))
	return rpc
}

func TestResolver_TopOfBook(t *testing.T) {
	ctx := context.Background()
	book, err := NewResolver(seededRPC(), testLogger()).Resolve(ctx, solPair)
	require.NoError(t, err)
	assert.Equal(t, "SOL/USDC", book.Pair().Name)

	top, err := book.TopOfBook(ctx)
	require.NoError(t, err)
	require.NotNil(t, top.Bid)
	require.NotNil(t, top.Ask)

	assert.True(t, top.Bid.Price.Equal(decimal.RequireFromString("150.25")), "bid %s", top.Bid.Price)
	assert.True(t, top.Bid.Quantity.Equal(decimal.RequireFromString("2.5")), "bid qty %s", top.Bid.Quantity)
	assert.True(t, top.Ask.Price.Equal(decimal.RequireFromString("150.3")), "ask %s", top.Ask.Price)

	mid, ok := top.MidPrice()
	require.True(t, ok)
	assert.True(t, mid.Equal(decimal.RequireFromString("150.275")), "mid %s", mid)
}

func TestResolver_EmptySide(t *testing.T) {
	rpc := seededRPC()
	rpc.put(asksKey, program, slabData(FlagAsks, 0))

	ctx := context.Background()
	book, err := NewResolver(rpc, testLogger()).Resolve(ctx, solPair)
	require.NoError(t, err)

	top, err := book.TopOfBook(ctx)
	require.NoError(t, err)
	assert.NotNil(t, top.Bid)
	assert.Nil(t, top.Ask)

	_, ok := top.MidPrice()
	assert.False(t, ok)
}

func TestResolver_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong owner", func(t *testing.T) {
		rpc := seededRPC()
		rpc.put(marketKey, baseMint, marketData(FlagInitialized|FlagMarket, testBaseLot, testQuoteLot))

		_, err := NewResolver(rpc, testLogger()).Resolve(ctx, solPair)
		assert.Equal(t, apperror.CodeInvalidMarketOwner, apperror.GetCode(err))
	})

	t.Run("missing market", func(t *testing.T) {
		rpc := seededRPC()
		delete(rpc.accounts, marketKey)

		_, err := NewResolver(rpc, testLogger()).Resolve(ctx, solPair)
		assert.Equal(t, apperror.CodeSolanaAccountMissing, apperror.GetCode(err))
	})

	t.Run("missing mint", func(t *testing.T) {
		rpc := seededRPC()
		delete(rpc.accounts, quoteMint)

		_, err := NewResolver(rpc, testLogger()).Resolve(ctx, solPair)
		assert.Equal(t, apperror.CodeSolanaAccountMissing, apperror.GetCode(err))
	})

	t.Run("bad address", func(t *testing.T) {
		pair := solPair
		pair.MarketAddress = "nope"

		_, err := NewResolver(seededRPC(), testLogger()).Resolve(ctx, pair)
		assert.Equal(t, apperror.CodeInvalidPublicKey, apperror.GetCode(err))
	})

	t.Run("book fetch error", func(t *testing.T) {
		rpc := seededRPC()
		book, err := NewResolver(rpc, testLogger()).Resolve(ctx, solPair)
		require.NoError(t, err)

		rpc.err = apperror.New(apperror.CodeSolanaRPCError)
		_, err = book.TopOfBook(ctx)
		assert.Equal(t, apperror.CodeSolanaRPCError, apperror.GetCode(err))
	})

	t.Run("missing book side", func(t *testing.T) {
		rpc := seededRPC()
		book, err := NewResolver(rpc, testLogger()).Resolve(ctx, solPair)
		require.NoError(t, err)

		delete(rpc.accounts, bidsKey)
		_, err = book.TopOfBook(ctx)
		assert.Equal(t, apperror.CodeSolanaAccountMissing, apperror.GetCode(err))
	})
}
