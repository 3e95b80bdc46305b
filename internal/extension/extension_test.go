package extension

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"AMMLedger/internal/pool"
)

// addrFor builds an address whose leading bytes encode the call points.
func addrFor(points CallPoints, tail byte) common.Address {
	var addr common.Address
	addr[0] = byte(points >> 8)
	addr[1] = byte(points)
	addr[19] = tail
	return addr
}

func poolKeyWith(ext common.Address) pool.Key {
	return pool.Key{
		Token0:      common.HexToAddress("0x01"),
		Token1:      common.HexToAddress("0x02"),
		Fee:         3000,
		TickSpacing: 60,
		Extension:   ext,
	}
}

func TestAddressEncodesCallPoints(t *testing.T) {
	points := BeforeSwap | AfterSwap
	addr := addrFor(points, 1)

	if got := PointsFromAddress(addr); got != points {
		t.Fatalf("decoded %#04x, want %#04x", uint16(got), uint16(points))
	}
	if err := ValidateAddress(addr, points); err != nil {
		t.Fatalf("matching address rejected: %v", err)
	}
	if err := ValidateAddress(addr, points|BeforeInitialize); !errors.Is(err, ErrInvalidCallPoints) {
		t.Fatalf("got %v, want ErrInvalidCallPoints", err)
	}
}

func TestRegisterValidatesAddress(t *testing.T) {
	r := NewRegistry()
	ext := Base{Points: BeforeSwap}

	bad := addrFor(BeforeSwap|AfterSwap, 1)
	if err := r.Register(bad, ext); !errors.Is(err, ErrInvalidCallPoints) {
		t.Fatalf("got %v, want ErrInvalidCallPoints", err)
	}

	good := addrFor(BeforeSwap, 1)
	if err := r.Register(good, ext); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(good, ext); !errors.Is(err, ErrExtensionAlreadyRegistered) {
		t.Fatalf("got %v, want ErrExtensionAlreadyRegistered", err)
	}
	if !r.Registered(good) {
		t.Fatal("registered extension not found")
	}
}

// recorder counts hook invocations and optionally vetoes.
type recorder struct {
	Base
	calls map[string]int
	veto  error
}

func newRecorder(points CallPoints) *recorder {
	return &recorder{Base: Base{Points: points}, calls: make(map[string]int)}
}

func (r *recorder) BeforeSwap(_ common.Address, _ pool.Key, params *pool.SwapParams) error {
	r.calls["beforeSwap"]++
	if r.veto != nil {
		return r.veto
	}
	// Extensions may rewrite parameters before execution.
	params.SkipAhead = 4
	return nil
}

func (r *recorder) AfterSwap(common.Address, pool.Key, *pool.SwapResult) error {
	r.calls["afterSwap"]++
	return nil
}

func (r *recorder) BeforeUpdatePosition(common.Address, pool.Key, pool.PositionKey, *big.Int) error {
	r.calls["beforeUpdate"]++
	return nil
}

func TestDispatcherInvokesSubscribedHooksOnly(t *testing.T) {
	r := NewRegistry()
	rec := newRecorder(BeforeSwap | AfterSwap)
	addr := addrFor(rec.CallPoints(), 7)
	if err := r.Register(addr, rec); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(r)
	caller := common.HexToAddress("0xcc")
	key := poolKeyWith(addr)

	params := pool.SwapParams{Amount: big.NewInt(100)}
	if err := d.BeforeSwap(caller, key, &params); err != nil {
		t.Fatalf("before swap: %v", err)
	}
	if params.SkipAhead != 4 {
		t.Fatal("hook rewrite of parameters not visible")
	}
	if err := d.AfterSwap(caller, key, &pool.SwapResult{}); err != nil {
		t.Fatalf("after swap: %v", err)
	}
	// The extension does not subscribe to position updates.
	if err := d.BeforeUpdatePosition(caller, key, pool.PositionKey{}, big.NewInt(1)); err != nil {
		t.Fatalf("before update: %v", err)
	}

	if rec.calls["beforeSwap"] != 1 || rec.calls["afterSwap"] != 1 {
		t.Fatalf("swap hooks = %v, want one call each", rec.calls)
	}
	if rec.calls["beforeUpdate"] != 0 {
		t.Fatal("unsubscribed hook invoked")
	}
}

func TestDispatcherSkipsPoolsWithoutExtension(t *testing.T) {
	d := NewDispatcher(NewRegistry())
	key := poolKeyWith(common.Address{})

	if err := d.BeforeSwap(common.Address{}, key, &pool.SwapParams{}); err != nil {
		t.Fatalf("pool without extension dispatched: %v", err)
	}
}

func TestDispatcherUnregisteredExtension(t *testing.T) {
	d := NewDispatcher(NewRegistry())
	key := poolKeyWith(addrFor(BeforeSwap, 9))

	err := d.BeforeSwap(common.Address{}, key, &pool.SwapParams{})
	if !errors.Is(err, ErrExtensionNotRegistered) {
		t.Fatalf("got %v, want ErrExtensionNotRegistered", err)
	}
}

func TestDispatcherVetoPropagates(t *testing.T) {
	r := NewRegistry()
	rec := newRecorder(BeforeSwap)
	rec.veto = errors.New("swap window closed")
	addr := addrFor(rec.CallPoints(), 3)
	if err := r.Register(addr, rec); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(r)
	err := d.BeforeSwap(common.Address{}, poolKeyWith(addr), &pool.SwapParams{})
	if err == nil || err.Error() != "swap window closed" {
		t.Fatalf("got %v, want veto error", err)
	}
}
