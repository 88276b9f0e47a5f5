package serum

import (
	"encoding/binary"
	"fmt"

	"github.com/fd1az/spread-monitor/internal/apperror"
)

// slab layout
const (
	offSlabFlags   = 5
	offBumpIndex   = 13
	slabHeaderSize = 32
	offNodes       = headPadding + 8 + slabHeaderSize
	nodeSize       = 72
)

// tagLeaf marks a node holding a resting order. Inner and free nodes are
// skipped.
const tagLeaf uint32 = 2

// Order is a resting order in lot units.
type Order struct {
	PriceLots    uint64
	QuantityLots uint64
	OwnerSlot    uint8
	FeeTier      uint8
	OwnerAccount [32]byte
	ClientID     uint64
}

// Slab is a decoded order book side.
type Slab struct {
	Flags  uint64
	Orders []Order
}

// IsBids reports whether the slab holds bids.
func (s *Slab) IsBids() bool { return s.Flags&FlagBids != 0 }

// Best returns the best resting order: highest price for bids, lowest for
// asks. ok is false when the side is empty.
func (s *Slab) Best() (best Order, ok bool) {
	bids := s.IsBids()
	for _, o := range s.Orders {
		if !ok || (bids && o.PriceLots > best.PriceLots) || (!bids && o.PriceLots < best.PriceLots) {
			best, ok = o, true
		}
	}
	return best, ok
}

// DecodeSlab parses a bids or asks account by scanning every allocated node
// for leaves.
func DecodeSlab(data []byte) (*Slab, error) {
	if len(data) < offNodes+tailPadding {
		return nil, apperror.New(apperror.CodeInvalidSlab,
			apperror.WithContext(fmt.Sprintf("slab account is %d bytes", len(data))))
	}

	flags := binary.LittleEndian.Uint64(data[offSlabFlags:])
	if flags&FlagInitialized == 0 || flags&(FlagBids|FlagAsks) == 0 {
		return nil, apperror.New(apperror.CodeInvalidSlab,
			apperror.WithContext(fmt.Sprintf("account flags %#x are not an order book side", flags)))
	}

	bump := int(binary.LittleEndian.Uint32(data[offBumpIndex:]))
	capacity := (len(data) - offNodes - tailPadding) / nodeSize
	if bump > capacity {
		bump = capacity
	}

	slab := &Slab{Flags: flags}
	for i := 0; i < bump; i++ {
		node := data[offNodes+i*nodeSize : offNodes+(i+1)*nodeSize]
		if binary.LittleEndian.Uint32(node[0:]) != tagLeaf {
			continue
		}
		o := Order{
			OwnerSlot: node[4],
			FeeTier:   node[5],
			// the order key is a u128 of (price << 64 | seq)
			PriceLots:    binary.LittleEndian.Uint64(node[16:]),
			QuantityLots: binary.LittleEndian.Uint64(node[56:]),
			ClientID:     binary.LittleEndian.Uint64(node[64:]),
		}
		copy(o.OwnerAccount[:], node[24:56])
		slab.Orders = append(slab.Orders, o)
	}
	return slab, nil
}
