package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeToken is the zero address, denoting the chain-native asset.
var NativeToken = common.Address{}

// BankState is an opaque deep copy of a bank's balances.
type BankState interface{}

// Bank is the external token surface the accountant settles against.
// Production deployments back this with the host environment's token
// state; tests and the standalone daemon use MemoryBank.
type Bank interface {
	// BalanceOf returns the owner's balance of token.
	BalanceOf(token, owner common.Address) *uint256.Int

	// Transfer moves amount of token from one account to another.
	Transfer(token, from, to common.Address, amount *uint256.Int) error

	// Snapshot captures all balances; Restore replaces them with a
	// previously captured snapshot. A failed lock rolls the bank back
	// together with the ledger, so no transfer outlives its frame.
	Snapshot() BankState
	Restore(BankState)
}

// MemoryBank is an in-memory Bank.
type MemoryBank struct {
	balances map[common.Address]map[common.Address]*uint256.Int
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (b *MemoryBank) BalanceOf(token, owner common.Address) *uint256.Int {
	accounts, ok := b.balances[token]
	if !ok {
		return uint256.NewInt(0)
	}
	bal, ok := accounts[owner]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(bal)
}

func (b *MemoryBank) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	fromBal := b.BalanceOf(token, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: token=%s have=%s need=%s",
			ErrInsufficientBalance, token.Hex(), fromBal, amount)
	}
	toBal := b.BalanceOf(token, to)
	if _, overflow := toBal.AddOverflow(toBal, amount); overflow {
		return fmt.Errorf("%w: token=%s recipient=%s", ErrAmountOverflow, token.Hex(), to.Hex())
	}

	// Both checks passed; neither account mutates on a failed transfer.
	b.set(token, from, fromBal.Sub(fromBal, amount))
	b.set(token, to, toBal)
	return nil
}

func (b *MemoryBank) Snapshot() BankState {
	return copyBalances(b.balances)
}

func (b *MemoryBank) Restore(s BankState) {
	b.balances = copyBalances(s.(map[common.Address]map[common.Address]*uint256.Int))
}

func copyBalances(src map[common.Address]map[common.Address]*uint256.Int) map[common.Address]map[common.Address]*uint256.Int {
	dst := make(map[common.Address]map[common.Address]*uint256.Int, len(src))
	for token, accounts := range src {
		c := make(map[common.Address]*uint256.Int, len(accounts))
		for owner, bal := range accounts {
			c[owner] = new(uint256.Int).Set(bal)
		}
		dst[token] = c
	}
	return dst
}

// Mint credits freshly issued tokens to an account.
func (b *MemoryBank) Mint(token, to common.Address, amount *uint256.Int) {
	bal := b.BalanceOf(token, to)
	bal.Add(bal, amount)
	b.set(token, to, bal)
}

func (b *MemoryBank) set(token, owner common.Address, amount *uint256.Int) {
	accounts, ok := b.balances[token]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		b.balances[token] = accounts
	}
	accounts[owner] = new(uint256.Int).Set(amount)
}
