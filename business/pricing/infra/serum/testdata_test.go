package serum

import (
	"context"
	"encoding/binary"

	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/solana"
)

var (
	program   = solana.MustPublicKey("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	marketKey = solana.MustPublicKey("9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT")
	baseMint  = solana.MustPublicKey("So11111111111111111111111111111111111111112")
	quoteMint = solana.MustPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	bidsKey   = solana.MustPublicKey("14ivtgssEBoBjuZJtSAPKYgpUK7DmnSwuPMqJoVTSgKJ")
	asksKey   = solana.MustPublicKey("CEQdAFKdycHugujQg9k2wbmxjcpdYZyVLfV9WerTnafJ")
)

// SOL/USDC lot sizes: 0.1 SOL per base lot, 0.001 USDC per price lot.
const (
	testBaseLot  = 100_000_000
	testQuoteLot = 100
)

func marketData(flags uint64, baseLot, quoteLot uint64) []byte {
	data := make([]byte, MarketStateSize)
	copy(data, "serum")
	binary.LittleEndian.PutUint64(data[offFlags:], flags)
	copy(data[offOwnAddress:], marketKey[:])
	copy(data[offBaseMint:], baseMint[:])
	copy(data[offQuoteMint:], quoteMint[:])
	copy(data[offBids:], bidsKey[:])
	copy(data[offAsks:], asksKey[:])
	binary.LittleEndian.PutUint64(data[offBaseLotSize:], baseLot)
	binary.LittleEndian.PutUint64(data[offQuoteLotSize:], quoteLot)
	copy(data[MarketStateSize-tailPadding:], "padding")
	return data
}

type testNode struct {
	tag   uint32
	price uint64
	qty   uint64
}

func leaf(price, qty uint64) testNode { return testNode{tag: tagLeaf, price: price, qty: qty} }

func inner() testNode { return testNode{tag: 1} }

// slabData lays out nodes in order; bump is set to len(nodes) plus extra so
// tests can claim more nodes than the buffer holds.
func slabData(side uint64, extraBump int, nodes ...testNode) []byte {
	data := make([]byte, offNodes+len(nodes)*nodeSize+tailPadding)
	copy(data, "serum")
	binary.LittleEndian.PutUint64(data[offSlabFlags:], FlagInitialized|side)
	binary.LittleEndian.PutUint32(data[offBumpIndex:], uint32(len(nodes)+extraBump))

	for i, n := range nodes {
		node := data[offNodes+i*nodeSize:]
		binary.LittleEndian.PutUint32(node[0:], n.tag)
		binary.LittleEndian.PutUint64(node[8:], uint64(i)) // sequence number
		binary.LittleEndian.PutUint64(node[16:], n.price)
		binary.LittleEndian.PutUint64(node[56:], n.qty)
	}
	return data
}

func mintData(decimals uint8) []byte {
	data := make([]byte, 82)
	data[mintDecimalsOffset] = decimals
	return data
}

type fakeRPC struct {
	accounts map[solana.PublicKey]*solana.Account
	err      error
	calls    int
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{accounts: make(map[solana.PublicKey]*solana.Account)}
}

func (f *fakeRPC) put(key, owner solana.PublicKey, data []byte) {
	f.accounts[key] = &solana.Account{Owner: owner, Data: data}
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, key solana.PublicKey) (*solana.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	acc, ok := f.accounts[key]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeSolanaAccountMissing, key.String())
	}
	return acc, nil
}

func (f *fakeRPC) GetMultipleAccounts(_ context.Context, keys []solana.PublicKey) ([]*solana.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*solana.Account, len(keys))
	for i, k := range keys {
		out[i] = f.accounts[k]
	}
	return out, nil
}
