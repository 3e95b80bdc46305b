package extension

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"AMMLedger/internal/pool"
)

// Registry maps extension addresses to their implementations. An
// extension must be registered before any pool can bind to it, and the
// address must encode its declared call points.
type Registry struct {
	extensions map[common.Address]Extension
}

func NewRegistry() *Registry {
	return &Registry{extensions: make(map[common.Address]Extension)}
}

func (r *Registry) Register(addr common.Address, ext Extension) error {
	if err := ValidateAddress(addr, ext.CallPoints()); err != nil {
		return fmt.Errorf("%w: addr=%s declared=%#04x", err, addr.Hex(), uint16(ext.CallPoints()))
	}
	if _, exists := r.extensions[addr]; exists {
		return fmt.Errorf("%w: %s", ErrExtensionAlreadyRegistered, addr.Hex())
	}
	r.extensions[addr] = ext
	return nil
}

// Get returns the extension registered at addr.
func (r *Registry) Get(addr common.Address) (Extension, error) {
	ext, ok := r.extensions[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExtensionNotRegistered, addr.Hex())
	}
	return ext, nil
}

// Registered reports whether addr has an extension.
func (r *Registry) Registered(addr common.Address) bool {
	_, ok := r.extensions[addr]
	return ok
}

// Dispatcher resolves a pool's extension and invokes only the hooks its
// call points subscribe to. Pools without an extension dispatch nothing.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// resolve returns the extension for the key, or nil when the pool has
// none or the extension skips the given point.
func (d *Dispatcher) resolve(key pool.Key, point CallPoints) (Extension, error) {
	if !key.HasExtension() {
		return nil, nil
	}
	ext, err := d.registry.Get(key.Extension)
	if err != nil {
		return nil, err
	}
	if !ext.CallPoints().Has(point) {
		return nil, nil
	}
	return ext, nil
}

func (d *Dispatcher) BeforeInitialize(caller common.Address, key pool.Key, tick int32) error {
	ext, err := d.resolve(key, BeforeInitialize)
	if ext == nil || err != nil {
		return err
	}
	return ext.BeforeInitialize(caller, key, tick)
}

func (d *Dispatcher) AfterInitialize(caller common.Address, key pool.Key, tick int32) error {
	ext, err := d.resolve(key, AfterInitialize)
	if ext == nil || err != nil {
		return err
	}
	return ext.AfterInitialize(caller, key, tick)
}

func (d *Dispatcher) BeforeSwap(caller common.Address, key pool.Key, params *pool.SwapParams) error {
	ext, err := d.resolve(key, BeforeSwap)
	if ext == nil || err != nil {
		return err
	}
	return ext.BeforeSwap(caller, key, params)
}

func (d *Dispatcher) AfterSwap(caller common.Address, key pool.Key, result *pool.SwapResult) error {
	ext, err := d.resolve(key, AfterSwap)
	if ext == nil || err != nil {
		return err
	}
	return ext.AfterSwap(caller, key, result)
}

func (d *Dispatcher) BeforeUpdatePosition(caller common.Address, key pool.Key, position pool.PositionKey, delta *big.Int) error {
	ext, err := d.resolve(key, BeforeUpdatePosition)
	if ext == nil || err != nil {
		return err
	}
	return ext.BeforeUpdatePosition(caller, key, position, delta)
}

func (d *Dispatcher) AfterUpdatePosition(caller common.Address, key pool.Key, position pool.PositionKey, result *pool.UpdatePositionResult) error {
	ext, err := d.resolve(key, AfterUpdatePosition)
	if ext == nil || err != nil {
		return err
	}
	return ext.AfterUpdatePosition(caller, key, position, result)
}

func (d *Dispatcher) BeforeCollectFees(caller common.Address, key pool.Key, position pool.PositionKey) error {
	ext, err := d.resolve(key, BeforeCollectFees)
	if ext == nil || err != nil {
		return err
	}
	return ext.BeforeCollectFees(caller, key, position)
}

func (d *Dispatcher) AfterCollectFees(caller common.Address, key pool.Key, position pool.PositionKey, result *pool.UpdatePositionResult) error {
	ext, err := d.resolve(key, AfterCollectFees)
	if ext == nil || err != nil {
		return err
	}
	return ext.AfterCollectFees(caller, key, position, result)
}
