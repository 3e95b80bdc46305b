package extension

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"AMMLedger/internal/pool"
)

var (
	ErrInvalidCallPoints          = errors.New("extension: address does not encode declared call points")
	ErrExtensionAlreadyRegistered = errors.New("extension: already registered")
	ErrExtensionNotRegistered     = errors.New("extension: not registered")
)

// CallPoints is the bitmask of hooks an extension subscribes to.
type CallPoints uint16

const (
	BeforeInitialize CallPoints = 1 << iota
	AfterInitialize
	BeforeSwap
	AfterSwap
	BeforeUpdatePosition
	AfterUpdatePosition
	BeforeCollectFees
	AfterCollectFees
)

// Has reports whether all the given points are set.
func (c CallPoints) Has(p CallPoints) bool { return c&p == p }

// PointsFromAddress reads the call points encoded in the leading two
// bytes of an extension address. The capability set is part of the
// identity: swapping hooks requires a new address, and anyone can
// verify what an extension may do from its address alone.
func PointsFromAddress(addr common.Address) CallPoints {
	return CallPoints(binary.BigEndian.Uint16(addr[:2]))
}

// ValidateAddress checks that the address encodes exactly the declared
// call points.
func ValidateAddress(addr common.Address, points CallPoints) error {
	if PointsFromAddress(addr) != points {
		return ErrInvalidCallPoints
	}
	return nil
}

// Extension is the hook surface a pool extension implements. Hooks run
// synchronously inside the locked call that triggered them; returning a
// non-nil error vetoes the whole operation.
type Extension interface {
	CallPoints() CallPoints

	BeforeInitialize(caller common.Address, key pool.Key, tick int32) error
	AfterInitialize(caller common.Address, key pool.Key, tick int32) error

	// BeforeSwap may rewrite the swap parameters in place; the engine
	// revalidates them before executing.
	BeforeSwap(caller common.Address, key pool.Key, params *pool.SwapParams) error
	AfterSwap(caller common.Address, key pool.Key, result *pool.SwapResult) error

	BeforeUpdatePosition(caller common.Address, key pool.Key, position pool.PositionKey, liquidityDelta *big.Int) error
	AfterUpdatePosition(caller common.Address, key pool.Key, position pool.PositionKey, result *pool.UpdatePositionResult) error

	BeforeCollectFees(caller common.Address, key pool.Key, position pool.PositionKey) error
	AfterCollectFees(caller common.Address, key pool.Key, position pool.PositionKey, result *pool.UpdatePositionResult) error
}

// Base is a no-op Extension to embed; concrete extensions override the
// hooks their call points subscribe to.
type Base struct{ Points CallPoints }

func (b Base) CallPoints() CallPoints { return b.Points }

func (Base) BeforeInitialize(common.Address, pool.Key, int32) error { return nil }
func (Base) AfterInitialize(common.Address, pool.Key, int32) error  { return nil }
func (Base) BeforeSwap(common.Address, pool.Key, *pool.SwapParams) error {
	return nil
}
func (Base) AfterSwap(common.Address, pool.Key, *pool.SwapResult) error { return nil }
func (Base) BeforeUpdatePosition(common.Address, pool.Key, pool.PositionKey, *big.Int) error {
	return nil
}
func (Base) AfterUpdatePosition(common.Address, pool.Key, pool.PositionKey, *pool.UpdatePositionResult) error {
	return nil
}
func (Base) BeforeCollectFees(common.Address, pool.Key, pool.PositionKey) error { return nil }
func (Base) AfterCollectFees(common.Address, pool.Key, pool.PositionKey, *pool.UpdatePositionResult) error {
	return nil
}
