package vault

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerBridge is an in-memory TokenBridge backed by a plain external token
// ledger. It stands in for the chain-side token transfers in the devnet node
// and in tests; a production deployment supplies its own bridge.
type LedgerBridge struct {
	mu sync.Mutex
	// holdings[token][holder]
	holdings map[common.Address]map[common.Address]*big.Int
}

var ErrBridgeBalance = errors.New("vault: external ledger balance too low")

func NewLedgerBridge() *LedgerBridge {
	return &LedgerBridge{holdings: make(map[common.Address]map[common.Address]*big.Int)}
}

// Mint credits holder on the external ledger.
func (b *LedgerBridge) Mint(token, holder common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slot(token, holder).Add(b.slot(token, holder), amount)
}

// HoldingOf returns holder's external balance for token.
func (b *LedgerBridge) HoldingOf(token, holder common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.slot(token, holder))
}

func (b *LedgerBridge) Pull(token, from common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.slot(token, from)
	if s.Cmp(amount) < 0 {
		return ErrBridgeBalance
	}
	s.Sub(s, amount)
	return nil
}

func (b *LedgerBridge) Release(token, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.slot(token, to)
	s.Add(s, amount)
	return nil
}

func (b *LedgerBridge) slot(token, holder common.Address) *big.Int {
	m, ok := b.holdings[token]
	if !ok {
		m = make(map[common.Address]*big.Int)
		b.holdings[token] = m
	}
	s, ok := m[holder]
	if !ok {
		s = new(big.Int)
		m[holder] = s
	}
	return s
}

var _ TokenBridge = (*LedgerBridge)(nil)
