// Package serum decodes Serum DEX v3 market and order book accounts read
// over Solana JSON-RPC.
package serum

import (
	"encoding/binary"
	"fmt"

	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/solana"
)

// Account flag bits shared by every Serum account.
const (
	FlagInitialized  uint64 = 1 << 0
	FlagMarket       uint64 = 1 << 1
	FlagOpenOrders   uint64 = 1 << 2
	FlagRequestQueue uint64 = 1 << 3
	FlagEventQueue   uint64 = 1 << 4
	FlagBids         uint64 = 1 << 5
	FlagAsks         uint64 = 1 << 6
)

// Every Serum account is framed by "serum" and "padding".
const (
	headPadding = 5
	tailPadding = 7
)

// MarketStateSize is the length of a v3 market account.
const MarketStateSize = 388

// market state offsets, from the start of the account data
const (
	offFlags        = 5
	offOwnAddress   = 13
	offBaseMint     = 53
	offQuoteMint    = 85
	offBids         = 285
	offAsks         = 317
	offBaseLotSize  = 349
	offQuoteLotSize = 357
)

// MarketState is the subset of the v3 market layout needed to locate and
// price the order book.
type MarketState struct {
	Flags        uint64
	OwnAddress   solana.PublicKey
	BaseMint     solana.PublicKey
	QuoteMint    solana.PublicKey
	Bids         solana.PublicKey
	Asks         solana.PublicKey
	BaseLotSize  uint64
	QuoteLotSize uint64
}

// DecodeMarket parses a market account.
func DecodeMarket(data []byte) (*MarketState, error) {
	if len(data) < MarketStateSize {
		return nil, apperror.New(apperror.CodeInvalidMarketAccount,
			apperror.WithContext(fmt.Sprintf("market account is %d bytes, want %d", len(data), MarketStateSize)))
	}

	flags := binary.LittleEndian.Uint64(data[offFlags:])
	if flags&FlagInitialized == 0 || flags&FlagMarket == 0 {
		return nil, apperror.New(apperror.CodeInvalidMarketAccount,
			apperror.WithContext(fmt.Sprintf("account flags %#x are not an initialized market", flags)))
	}

	m := &MarketState{
		Flags:        flags,
		OwnAddress:   key(data, offOwnAddress),
		BaseMint:     key(data, offBaseMint),
		QuoteMint:    key(data, offQuoteMint),
		Bids:         key(data, offBids),
		Asks:         key(data, offAsks),
		BaseLotSize:  binary.LittleEndian.Uint64(data[offBaseLotSize:]),
		QuoteLotSize: binary.LittleEndian.Uint64(data[offQuoteLotSize:]),
	}
	if m.BaseLotSize == 0 || m.QuoteLotSize == 0 {
		return nil, apperror.New(apperror.CodeInvalidMarketAccount,
			apperror.WithContext("zero lot size"))
	}
	return m, nil
}

func key(data []byte, off int) solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], data[off:off+solana.PublicKeySize])
	return pk
}

// mintDecimalsOffset is the position of the decimals byte in an SPL token
// mint account.
const mintDecimalsOffset = 44

// DecodeMintDecimals reads the decimals of an SPL token mint.
func DecodeMintDecimals(data []byte) (uint8, error) {
	if len(data) <= mintDecimalsOffset {
		return 0, apperror.New(apperror.CodeInvalidMarketAccount,
			apperror.WithContext(fmt.Sprintf("mint account is %d bytes", len(data))))
	}
	return data[mintDecimalsOffset], nil
}
