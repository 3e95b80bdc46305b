package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	fpmath "AMMLedger/internal/math"
)

// Locker receives the lock callback. Everything the collaborator wants to
// do against the engine happens synchronously inside OnLocked; when it
// returns, every token delta of the frame must be zero.
type Locker interface {
	OnLocked(frameID uint64, data []byte) error
}

// LockerFunc adapts a function to the Locker interface.
type LockerFunc func(frameID uint64, data []byte) error

func (f LockerFunc) OnLocked(frameID uint64, data []byte) error { return f(frameID, data) }

// Payer performs the external transfer when asked to fund a payment.
// The accountant snapshots its claimed reserves before the callback and
// credits whatever balance increase it observes afterwards.
type Payer interface {
	PayFunds(token common.Address) error
}

// PayerFunc adapts a function to the Payer interface.
type PayerFunc func(token common.Address) error

func (f PayerFunc) PayFunds(token common.Address) error { return f(token) }

// SavedKey addresses a persistent saved balance.
type SavedKey struct {
	Owner common.Address
	Token common.Address
	Salt  common.Hash
}

// frame is one entry of the lock-context stack. Deltas are signed:
// positive means the ledger owes the frame's owner (withdrawable credit),
// negative means the owner owes the ledger (must pay before unwind).
type frame struct {
	id     uint64
	owner  common.Address
	depth  int
	deltas map[common.Address]*big.Int
}

func (f *frame) delta(token common.Address) *big.Int {
	d, ok := f.deltas[token]
	if !ok {
		d = new(big.Int)
		f.deltas[token] = d
	}
	return d
}

// Accountant is the flash-accounting ledger. It is the only path by which
// external token value enters or leaves the system: every movement is
// mirrored by a delta change in the active lock frame, and every frame
// must net to zero per token before it unwinds.
//
// Execution is single-threaded; reentrancy is the only concurrency, and
// it is expressed as nested frames on an explicit stack.
type Accountant struct {
	bank Bank
	self common.Address

	frames      []*frame
	nextFrameID uint64

	// reserves is the per-token balance the accountant has already
	// claimed credit for. Pay credits only the excess over this
	// checkpoint, which is what makes a transfer unclaimable twice.
	reserves map[common.Address]*uint256.Int

	// payFrame is the frame a pending payment callback belongs to, or
	// nil. A Pay issued for a different frame while one is pending is
	// the double-counting exploit and is rejected.
	payFrame *frame

	saved map[SavedKey]*uint256.Int
}

// NewAccountant creates the accountant holding custody under self's
// account on the given bank.
func NewAccountant(bank Bank, self common.Address) *Accountant {
	return &Accountant{
		bank:     bank,
		self:     self,
		reserves: make(map[common.Address]*uint256.Int),
		saved:    make(map[SavedKey]*uint256.Int),
	}
}

// Self returns the accountant's own vault account.
func (a *Accountant) Self() common.Address { return a.self }

// InLock reports whether any lock frame is active.
func (a *Accountant) InLock() bool { return len(a.frames) > 0 }

// Depth returns the current lock nesting depth.
func (a *Accountant) Depth() int { return len(a.frames) }

func (a *Accountant) top() *frame {
	if len(a.frames) == 0 {
		return nil
	}
	return a.frames[len(a.frames)-1]
}

// CurrentLocker returns the owner of the innermost frame.
func (a *Accountant) CurrentLocker() (common.Address, bool) {
	f := a.top()
	if f == nil {
		return common.Address{}, false
	}
	return f.owner, true
}

// Lock opens a frame for owner, runs the callback, and requires the frame
// to be fully settled on return. Nested calls stack; each frame settles
// independently on its own unwind.
func (a *Accountant) Lock(owner common.Address, cb Locker, data []byte) error {
	f := &frame{
		id:     a.nextFrameID,
		owner:  owner,
		depth:  len(a.frames),
		deltas: make(map[common.Address]*big.Int),
	}
	a.nextFrameID++
	a.frames = append(a.frames, f)
	defer func() {
		a.frames = a.frames[:len(a.frames)-1]
	}()

	if err := cb.OnLocked(f.id, data); err != nil {
		return err
	}

	for token, d := range f.deltas {
		if d.Sign() != 0 {
			return fmt.Errorf("%w: token=%s delta=%s", ErrUnsettledDebt, token.Hex(), d)
		}
	}
	return nil
}

// Pay asks the payer to fund token and credits the observed balance
// increase to the current frame. The credit is measured against the
// accountant's claimed-reserve checkpoint, so an increase can be claimed
// exactly once no matter how deeply locks nest.
func (a *Accountant) Pay(payer Payer, token common.Address) (*uint256.Int, error) {
	f := a.top()
	if f == nil {
		return nil, ErrNotLocked
	}
	if a.payFrame != nil && a.payFrame != f {
		return nil, fmt.Errorf("%w: pending frame=%d, current frame=%d",
			ErrPayReentrance, a.payFrame.id, f.id)
	}

	prevPay := a.payFrame
	a.payFrame = f
	defer func() { a.payFrame = prevPay }()

	if err := payer.PayFunds(token); err != nil {
		return nil, err
	}

	observed := a.bank.BalanceOf(token, a.self)
	checkpoint := a.reserve(token)
	if observed.Lt(checkpoint) {
		// Balance shrank during the callback; nothing to credit.
		a.reserves[token] = observed
		return uint256.NewInt(0), nil
	}

	credit := new(uint256.Int).Sub(observed, checkpoint)
	if err := a.applyDelta(f, token, credit.ToBig()); err != nil {
		return nil, err
	}
	a.reserves[token] = observed
	return credit, nil
}

// PayFrom pulls an exact amount from the payer's bank account and credits
// it to the current frame.
func (a *Accountant) PayFrom(payer common.Address, token common.Address, amount *uint256.Int) error {
	f := a.top()
	if f == nil {
		return ErrNotLocked
	}
	if err := a.bank.Transfer(token, payer, a.self, amount); err != nil {
		return err
	}
	if err := a.applyDelta(f, token, amount.ToBig()); err != nil {
		return err
	}
	a.reserve(token).Add(a.reserve(token), amount)
	return nil
}

// Withdraw debits the current frame and transfers amount of token to the
// recipient.
func (a *Accountant) Withdraw(token, recipient common.Address, amount *uint256.Int) error {
	f := a.top()
	if f == nil {
		return ErrNotLocked
	}
	d := f.delta(token)
	next := new(big.Int).Sub(d, amount.ToBig())
	if !fpmath.FitsInt128(next) {
		return fmt.Errorf("%w: token=%s delta=%s", ErrDeltaOverflow, token.Hex(), next)
	}
	if err := a.bank.Transfer(token, a.self, recipient, amount); err != nil {
		return err
	}
	d.Set(next)
	checkpoint := a.reserve(token)
	if checkpoint.Lt(amount) {
		checkpoint.Clear()
	} else {
		checkpoint.Sub(checkpoint, amount)
	}
	return nil
}

// WithdrawalRequest is one item of a batched withdrawal.
type WithdrawalRequest struct {
	Token     common.Address
	Recipient common.Address
	Amount    *uint256.Int
}

// WithdrawMultiple performs a batch of withdrawals with per-item
// semantics identical to Withdraw. The first failure aborts the batch.
func (a *Accountant) WithdrawMultiple(requests []WithdrawalRequest) error {
	for i, req := range requests {
		if err := a.Withdraw(req.Token, req.Recipient, req.Amount); err != nil {
			return fmt.Errorf("withdrawal %d: %w", i, err)
		}
	}
	return nil
}

// Save parks amount from the current frame's credit into the recipient's
// persistent saved balance under salt. No external transfer happens.
func (a *Accountant) Save(recipient common.Address, token common.Address, salt common.Hash, amount *uint256.Int) error {
	f := a.top()
	if f == nil {
		return ErrNotLocked
	}

	key := SavedKey{Owner: recipient, Token: token, Salt: salt}
	current := a.savedBalance(key)
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow || next.BitLen() > 128 {
		return fmt.Errorf("%w: owner=%s token=%s", ErrSavedBalanceOverflow, recipient.Hex(), token.Hex())
	}

	if err := a.applyDelta(f, token, new(big.Int).Neg(amount.ToBig())); err != nil {
		return err
	}
	a.saved[key] = next
	return nil
}

// Load is the inverse of Save: it moves amount from the frame owner's
// saved balance back into the frame's credit.
func (a *Accountant) Load(token common.Address, salt common.Hash, amount *uint256.Int) error {
	f := a.top()
	if f == nil {
		return ErrNotLocked
	}

	key := SavedKey{Owner: f.owner, Token: token, Salt: salt}
	current := a.savedBalance(key)
	if current.Lt(amount) {
		return fmt.Errorf("%w: owner=%s token=%s have=%s need=%s",
			ErrInsufficientSavedBalance, f.owner.Hex(), token.Hex(), current, amount)
	}

	if err := a.applyDelta(f, token, amount.ToBig()); err != nil {
		return err
	}
	next := new(uint256.Int).Sub(current, amount)
	if next.IsZero() {
		delete(a.saved, key)
	} else {
		a.saved[key] = next
	}
	return nil
}

// SaveTwo saves a token pair under one salt in a single operation.
func (a *Accountant) SaveTwo(recipient common.Address, token0, token1 common.Address, salt common.Hash, amount0, amount1 *uint256.Int) error {
	if err := a.Save(recipient, token0, salt, amount0); err != nil {
		return err
	}
	return a.Save(recipient, token1, salt, amount1)
}

// LoadTwo loads a token pair under one salt in a single operation.
func (a *Accountant) LoadTwo(token0, token1 common.Address, salt common.Hash, amount0, amount1 *uint256.Int) error {
	if err := a.Load(token0, salt, amount0); err != nil {
		return err
	}
	return a.Load(token1, salt, amount1)
}

// AccrueSaved credits a saved balance directly, without touching any
// frame delta. Used for internally generated value that is already in
// the vault's custody, such as the protocol's share of swap fees.
func (a *Accountant) AccrueSaved(owner, token common.Address, salt common.Hash, amount *uint256.Int) error {
	key := SavedKey{Owner: owner, Token: token, Salt: salt}
	next, overflow := new(uint256.Int).AddOverflow(a.savedBalance(key), amount)
	if overflow || next.BitLen() > 128 {
		return fmt.Errorf("%w: owner=%s token=%s", ErrSavedBalanceOverflow, owner.Hex(), token.Hex())
	}
	a.saved[key] = next
	return nil
}

// SavedBalance returns the persistent balance for (owner, token, salt).
func (a *Accountant) SavedBalance(owner, token common.Address, salt common.Hash) *uint256.Int {
	return new(uint256.Int).Set(a.savedBalance(SavedKey{Owner: owner, Token: token, Salt: salt}))
}

// SavedBalancePair returns the balances of a token pair under one salt.
func (a *Accountant) SavedBalancePair(owner, token0, token1 common.Address, salt common.Hash) (*uint256.Int, *uint256.Int) {
	return a.SavedBalance(owner, token0, salt), a.SavedBalance(owner, token1, salt)
}

// Delta returns the current frame's signed delta for token. Zero when no
// frame is active.
func (a *Accountant) Delta(token common.Address) *big.Int {
	f := a.top()
	if f == nil {
		return new(big.Int)
	}
	d, ok := f.deltas[token]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(d)
}

// ApplyDelta adjusts the current frame's delta for token by the signed
// amount. Used by the pool engine to post amounts owed and owing from
// liquidity updates and swaps.
func (a *Accountant) ApplyDelta(token common.Address, amount *big.Int) error {
	f := a.top()
	if f == nil {
		return ErrNotLocked
	}
	return a.applyDelta(f, token, amount)
}

// ReceiveNative accepts a native-asset transfer into the vault. Transfers
// arriving outside an active lock context are rejected outright.
func (a *Accountant) ReceiveNative(from common.Address, amount *uint256.Int) error {
	if !a.InLock() {
		return ErrNotLocked
	}
	return a.bank.Transfer(NativeToken, from, a.self, amount)
}

func (a *Accountant) applyDelta(f *frame, token common.Address, amount *big.Int) error {
	d := f.delta(token)
	next := new(big.Int).Add(d, amount)
	if !fpmath.FitsInt128(next) {
		return fmt.Errorf("%w: token=%s delta=%s", ErrDeltaOverflow, token.Hex(), next)
	}
	d.Set(next)
	return nil
}

func (a *Accountant) reserve(token common.Address) *uint256.Int {
	r, ok := a.reserves[token]
	if !ok {
		r = uint256.NewInt(0)
		a.reserves[token] = r
	}
	return r
}

func (a *Accountant) savedBalance(key SavedKey) *uint256.Int {
	b, ok := a.saved[key]
	if !ok {
		return uint256.NewInt(0)
	}
	return b
}

// State is a deep copy of the accountant's persistent state, used by the
// engine to restore it when a locked call fails partway through. It
// includes the bank's balances: transfers committed inside a failed
// frame are rolled back with everything else.
type State struct {
	reserves map[common.Address]*uint256.Int
	saved    map[SavedKey]*uint256.Int
	bank     BankState
}

// Snapshot captures reserves, saved balances, and the bank.
func (a *Accountant) Snapshot() *State {
	s := &State{
		reserves: make(map[common.Address]*uint256.Int, len(a.reserves)),
		saved:    make(map[SavedKey]*uint256.Int, len(a.saved)),
		bank:     a.bank.Snapshot(),
	}
	for k, v := range a.reserves {
		s.reserves[k] = new(uint256.Int).Set(v)
	}
	for k, v := range a.saved {
		s.saved[k] = new(uint256.Int).Set(v)
	}
	return s
}

// Restore replaces reserves, saved balances, and the bank's balances
// with the snapshot.
func (a *Accountant) Restore(s *State) {
	a.reserves = make(map[common.Address]*uint256.Int, len(s.reserves))
	a.saved = make(map[SavedKey]*uint256.Int, len(s.saved))
	for k, v := range s.reserves {
		a.reserves[k] = new(uint256.Int).Set(v)
	}
	for k, v := range s.saved {
		a.saved[k] = new(uint256.Int).Set(v)
	}
	a.bank.Restore(s.bank)
}
