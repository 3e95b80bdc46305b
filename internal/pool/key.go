package pool

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"

	fpmath "AMMLedger/internal/math"
)

// MaxTickSpacing bounds the tick spacing so that a full-range position
// always spans at least two spaced ticks.
const MaxTickSpacing = 698605

// Key identifies a pool. Two pools with the same tokens but different
// fee, spacing, or extension are distinct markets.
type Key struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uint64 // parts per million taken from swap input
	TickSpacing int32
	Extension   common.Address
}

// Validate checks the structural constraints of the key. Token ordering
// is canonical: token0 must sort strictly below token1.
func (k Key) Validate() error {
	cmp := bytes.Compare(k.Token0[:], k.Token1[:])
	switch {
	case cmp == 0:
		return fmt.Errorf("%w: %s", ErrTokensEqual, k.Token0.Hex())
	case cmp > 0:
		return fmt.Errorf("%w: %s > %s", ErrTokensUnsorted, k.Token0.Hex(), k.Token1.Hex())
	}
	if k.TickSpacing < 1 || k.TickSpacing > MaxTickSpacing {
		return fmt.Errorf("%w: %d", ErrInvalidTickSpacing, k.TickSpacing)
	}
	if k.Fee >= fpmath.FeeDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidFee, k.Fee)
	}
	return nil
}

// ID derives the pool's identifier from the canonical key encoding.
func (k Key) ID() common.Hash {
	h := blake3.New()
	h.Write(k.Token0[:])
	h.Write(k.Token1[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], k.Fee)
	h.Write(buf[:])
	binary.BigEndian.PutUint32(buf[:4], uint32(k.TickSpacing))
	h.Write(buf[:4])
	h.Write(k.Extension[:])
	return common.BytesToHash(h.Sum(nil))
}

// HasExtension reports whether the pool is bound to an extension.
func (k Key) HasExtension() bool {
	return k.Extension != (common.Address{})
}
