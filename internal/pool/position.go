package pool

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/zeebo/blake3"
)

// PositionKey identifies a position within one pool. The salt lets one
// owner hold multiple independent positions over the same range.
type PositionKey struct {
	Owner common.Address
	Lower int32
	Upper int32
	Salt  common.Hash
}

// Hash derives a stable identifier for the position, used for event and
// persistence keys.
func (k PositionKey) Hash() common.Hash {
	h := blake3.New()
	h.Write(k.Owner[:])
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(k.Lower))
	h.Write(b[:])
	binary.BigEndian.PutUint32(b[:], uint32(k.Upper))
	h.Write(b[:])
	h.Write(k.Salt[:])
	return common.BytesToHash(h.Sum(nil))
}

// Position is one liquidity position. Fee entitlement is tracked lazily:
// the checkpoints record fee growth inside the range as of the last
// touch, and the difference times liquidity is collected on the next.
type Position struct {
	Liquidity *uint256.Int

	FeeGrowthInsideLast0 *uint256.Int
	FeeGrowthInsideLast1 *uint256.Int

	// ExtraData is opaque storage for the owner, typically used by
	// extensions or periphery contracts. Only nonzero-liquidity
	// positions may carry it, so that emptied positions leave nothing
	// behind.
	ExtraData []byte
}

func newPosition() *Position {
	return &Position{
		Liquidity:            uint256.NewInt(0),
		FeeGrowthInsideLast0: uint256.NewInt(0),
		FeeGrowthInsideLast1: uint256.NewInt(0),
	}
}

func (p *Position) clone() *Position {
	cp := &Position{
		Liquidity:            new(uint256.Int).Set(p.Liquidity),
		FeeGrowthInsideLast0: new(uint256.Int).Set(p.FeeGrowthInsideLast0),
		FeeGrowthInsideLast1: new(uint256.Int).Set(p.FeeGrowthInsideLast1),
	}
	if p.ExtraData != nil {
		cp.ExtraData = append([]byte(nil), p.ExtraData...)
	}
	return cp
}

// GetPosition returns the position for key, or nil if it has never been
// touched or was fully withdrawn.
func (p *Pool) GetPosition(key PositionKey) *Position {
	return p.positions[key]
}

// SetPositionExtraData attaches opaque data to an existing position.
func (p *Pool) SetPositionExtraData(key PositionKey, data []byte) error {
	pos := p.positions[key]
	if pos == nil || pos.Liquidity.IsZero() {
		return ErrZeroLiquidityPosition
	}
	pos.ExtraData = append([]byte(nil), data...)
	return nil
}
